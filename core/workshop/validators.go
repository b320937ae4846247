package workshop

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	statusTag  = "wsstatus"
	statusText = "invalid workshop status"
)

func init() {
	_ = core.Validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(statusTag, statusText)
}

// statusValidation checks that the provided status is a known one.
func statusValidation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == StatusActive || s == StatusInactive
}
