package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and converts failures into a
// ValidationError keyed by JSON field path. messages overrides the default
// text for a field path.
func validateStruct(value any, messages map[string]string) *ValidationError {
	verr := &ValidationError{}
	err := validate.Struct(value)
	if err == nil {
		return verr
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		verr.Add("_", err.Error())
		return verr
	}
	for _, fe := range fieldErrors {
		field := fieldPath(fe.Namespace())
		if msg, ok := messages[field]; ok {
			verr.Add(field, msg)
			continue
		}
		verr.Add(field, defaultMessage(fe))
	}
	return verr
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt", "gte":
		return "must be a positive number"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return "is invalid"
	}
}
