package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// hex64 is a SHA-256 digest in hex, without the 0x prefix "hexadecimal" allows.
	_ = v.RegisterValidation("hex64", func(fl validator.FieldLevel) bool {
		return isHex64(fl.Field().String())
	})
	return v
}

// validateInput runs struct tag validation and converts the first failure
// into an ErrValidation with a readable message.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationErrorf("%v", err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return validationErrorf("%s is required", fe.Field())
	case "hex64":
		return validationErrorf("%s must be a 64-char hex SHA-256 value", fe.Field())
	case "min", "gte":
		return validationErrorf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return validationErrorf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return validationErrorf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "url", "http_url":
		return validationErrorf("%s must be a valid URL", fe.Field())
	default:
		return validationErrorf("%s failed %s", fe.Field(), describeRule(fe))
	}
}

func describeRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
