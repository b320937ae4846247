package echoapi

import (
	"github.com/trezcool/shule/core"
)

type (
	LoginRequest struct {
		Email string `json:"email" validate:"required,email"`
		// Secret is the password for staff and parents, the paternal
		// surname for students.
		Secret string `json:"secret" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	EnrollmentRequest struct {
		StudentID string `json:"student_id" validate:"required"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}

func (er *EnrollmentRequest) Validate() error {
	er.StudentID = core.CleanString(er.StudentID)
	return core.Validate.Struct(er)
}
