package validators

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	pkgerrors "github.com/awesometech/webinar-backoffice/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DirectRegistration is the payload of a registration that targets a specific
// webinar date instead of arriving as a platform event.
type DirectRegistration struct {
	WebinarDateID string `json:"webinar_date_id" validate:"required"`
	FirstName     string `json:"first_name" validate:"required"`
	LastName      string `json:"last_name"`
	Email         string `json:"email" validate:"required"`
	Organization  string `json:"organization"`
}

// DirectRegistrationFrom merges the decoded body with query parameters. The
// body wins when both carry a field.
func DirectRegistrationFrom(data map[string]any, query url.Values) DirectRegistration {
	field := func(key string) string {
		if raw, ok := data[key]; ok {
			if s, ok := raw.(string); ok && s != "" {
				return SanitizeString(s, 0)
			}
		}
		return SanitizeString(query.Get(key), 0)
	}
	return DirectRegistration{
		WebinarDateID: field("webinar_date_id"),
		FirstName:     field("first_name"),
		LastName:      field("last_name"),
		Email:         field("email"),
		Organization:  field("organization"),
	}
}

// CheckStruct validates the tagged fields of dest.
func CheckStruct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
