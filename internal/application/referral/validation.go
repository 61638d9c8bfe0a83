package referral

import (
	"errors"
	"reflect"
	"strings"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts validator errors into an INVALID_INPUT domain error
func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, e.Field()+": "+validationMessage(e))
	}
	return shared.NewDomainError("INVALID_INPUT", strings.Join(msgs, "; "))
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "nefield":
		return "A customer cannot refer themselves"
	default:
		return "Invalid value"
	}
}
