package user

import (
	"testing"
)

func TestCredentialDispatch(t *testing.T) {
	student := User{Role: RoleStudent}
	_ = student.SetSurnameToken("Garcia")
	if _, ok := student.Credential().(SurnameCredential); !ok {
		t.Errorf("student Credential() = %T, want SurnameCredential", student.Credential())
	}

	teacher := User{Role: RoleTeacher}
	_ = teacher.SetPassword("s3cr3t#pwd")
	if _, ok := teacher.Credential().(PasswordCredential); !ok {
		t.Errorf("teacher Credential() = %T, want PasswordCredential", teacher.Credential())
	}

	// schemes never cross: the student's surname is not a valid password and
	// the teacher's password is not a valid surname
	if err := teacher.Credential().Verify("Garcia"); err != ErrInvalidCredential {
		t.Errorf("Verify() error = %v, want ErrInvalidCredential", err)
	}
	if err := student.Credential().Verify("s3cr3t#pwd"); err != ErrInvalidCredential {
		t.Errorf("Verify() error = %v, want ErrInvalidCredential", err)
	}
}

func TestSurnameCredentialVerify(t *testing.T) {
	student := User{Role: RoleStudent}
	if err := student.SetSurnameToken("  Garcia "); err != nil {
		t.Fatalf("SetSurnameToken() failed: %v", err)
	}

	tests := []struct {
		name    string
		secret  string
		wantErr error
	}{
		{name: "exact", secret: "Garcia"},
		{name: "lowercase", secret: "garcia"},
		{name: "uppercase", secret: "GARCIA"},
		{name: "surrounding whitespace", secret: "  Garcia  "},
		{name: "typo", secret: "Garca", wantErr: ErrInvalidCredential},
		{name: "empty", secret: "", wantErr: ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := student.Credential().Verify(tt.secret); err != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// a student with no token on file never authenticates
	blank := User{Role: RoleStudent}
	if err := blank.Credential().Verify(""); err != ErrInvalidCredential {
		t.Errorf("Verify() error = %v, want ErrInvalidCredential", err)
	}
}

func TestPasswordCredentialVerify(t *testing.T) {
	teacher := User{Role: RoleTeacher}
	if err := teacher.SetPassword("s3cr3t#pwd"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}

	if err := teacher.Credential().Verify("s3cr3t#pwd"); err != nil {
		t.Errorf("Verify() error = %v, want nil", err)
	}
	if err := teacher.Credential().Verify("S3cr3t#pwd"); err != ErrInvalidCredential {
		t.Errorf("Verify() error = %v, want ErrInvalidCredential", err)
	}

	// password material is never set on students
	student := User{Role: RoleStudent}
	if err := student.SetPassword("s3cr3t#pwd"); err != ErrUnauthorized {
		t.Errorf("SetPassword() error = %v, want ErrUnauthorized", err)
	}
}
