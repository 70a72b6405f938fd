package validator

import (
	"net/url"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("origin", isOrigin); err != nil {
		panic(err)
	}
}

// GetValidator returns the shared validator used for config checks.
func GetValidator() *validator.Validate {
	return validate
}

// isOrigin accepts a browser origin: scheme and host, nothing after them.
func isOrigin(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == "" && u.User == nil
}
