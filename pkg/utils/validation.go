package utils

import (
	"fmt"
	"strings"

	pkgerrors "memo-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates a struct based on its validation tags. Failures
// come back as a validation AppError with one detail per field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	appErr := pkgerrors.NewValidationError("")
	for _, e := range validationErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		appErr.WithDetail(strings.ToLower(e.Field()), msg)
	}
	appErr.Message = strings.Join(messages, "; ")
	return appErr
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "dive":
		return fmt.Sprintf("%s contains invalid values", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
