package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleParent, RoleStudent}

	// PasswordRoles authenticate against the standard password scheme;
	// students authenticate by surname token instead.
	PasswordRoles = []string{RoleAdmin, RoleTeacher, RoleParent}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Parent", Value: RoleParent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Principal is an authenticated identity. It is passed by value into every
// scoped domain call; no component reads the caller's role from shared state.
type Principal struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

func (p Principal) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p Principal) IsTeacher() bool { return p.Role == RoleTeacher }
func (p Principal) IsParent() bool  { return p.Role == RoleParent }
func (p Principal) IsStudent() bool { return p.Role == RoleStudent }

// ChildRef links a parent account to one of their children.
type ChildRef struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Grade   string `json:"grade" validate:"required"`
	Section string `json:"section" validate:"required"`
}

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	PhotoURL  string `json:"photo_url,omitempty"` // opaque; storage/CDN is not our problem
	IsActive  *bool  `json:"is_active"`

	// students only
	Grade        string `json:"grade,omitempty"`
	Section      string `json:"section,omitempty"`
	SurnameToken string `json:"-"` // normalized paternal surname

	// admin/teacher/parent only
	PasswordHash []byte `json:"-"`

	// parents only
	Children []ChildRef `json:"children,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
}

func (u *User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsParent() bool  { return u.Role == RoleParent }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role, DisplayName: u.Name()}
}

// SetPassword hashes and stores `pwd`. Student accounts never hold a password
// hash; their surname token is the authoritative secret.
func (u *User) SetPassword(pwd string) error {
	if u.IsStudent() {
		return ErrUnauthorized
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// SetSurnameToken stores the normalized paternal surname as the student secret.
func (u *User) SetSurnameToken(surname string) error {
	if !u.IsStudent() {
		return ErrUnauthorized
	}
	u.SurnameToken = core.CleanString(surname, true /* lower */)
	return nil
}

func (u *User) HasChild(id string) bool {
	for _, c := range u.Children {
		if c.ID == id {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a new admin, teacher or
// parent account. Students are created via NewStudent.
type NewUser struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,pwdrole"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nil, nu.Email)
}

// NewStudent contains information needed to create a new student account.
// The paternal surname becomes the login secret.
type NewStudent struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	PaternalSurname string `json:"paternal_surname" validate:"required"`
	Grade           string `json:"grade" validate:"required,alphanum_"`
	Section         string `json:"section" validate:"required,alphanum_"`
}

func (ns *NewStudent) Validate(svc *Service) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.PaternalSurname = core.CleanString(ns.PaternalSurname)
	ns.Grade = core.CleanString(ns.Grade, true /* lower */)
	ns.Section = core.CleanString(ns.Section, true /* lower */)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkUniqueness(nil, ns.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email" validate:"omitempty,email"`
	PhotoURL        string `json:"photo_url"`
	IsActive        *bool  `json:"is_active"`
	Grade           string `json:"grade" validate:"omitempty,alphanum_"`
	Section         string `json:"section" validate:"omitempty,alphanum_"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, svc *Service) error {
	if fname := core.CleanString(uu.FirstName); fname != "" {
		uu.FirstName = fname
	} else {
		uu.FirstName = origUsr.FirstName
	}
	if lname := core.CleanString(uu.LastName); lname != "" {
		uu.LastName = lname
	} else {
		uu.LastName = origUsr.LastName
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Password != "" && origUsr.IsStudent() {
		return core.NewValidationError(ErrUnauthorized, core.FieldError{
			Field: "password", Error: "students do not have a password account",
		})
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(&origUsr, uu.Email)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	Grade       string    `query:"grade"`
	Section     string    `query:"section"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Grade == "" && qf.Section == "" &&
		qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Grade = core.CleanString(qf.Grade, true /* lower */)
	qf.Section = core.CleanString(qf.Section, true /* lower */)
}
