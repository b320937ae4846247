package announcement

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	audienceTag  = "audience"
	audienceText = "invalid target audience"
)

func init() {
	_ = core.Validate.RegisterValidation(audienceTag, audienceValidation)
	core.RegisterCustomTranslation(audienceTag, audienceText)
}

// audienceValidation checks that the provided audience is a known bucket.
func audienceValidation(fl validator.FieldLevel) bool {
	aud := fl.Field().String()
	for _, a := range AllAudiences {
		if aud == a {
			return true
		}
	}
	return false
}
