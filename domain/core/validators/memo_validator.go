package validators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"memo-backend/domain/config"
	"memo-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// MemoValidator validates memo-related domain rules
type MemoValidator struct {
	cfg      *config.DomainConfig
	validate *validator.Validate
}

// NewMemoValidator creates a new memo validator with default rules
func NewMemoValidator() *MemoValidator {
	return NewMemoValidatorWithConfig(config.DefaultDomainConfig())
}

// NewMemoValidatorWithConfig creates a memo validator bound to cfg
func NewMemoValidatorWithConfig(cfg *config.DomainConfig) *MemoValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &MemoValidator{
		cfg:      cfg,
		validate: validator.New(),
	}
}

// ValidateText checks title and content against the configured limits
func (v *MemoValidator) ValidateText(title, content string) error {
	if strings.TrimSpace(title) == "" && !v.cfg.AllowEmptyTitle {
		return errors.NewValidationError("title cannot be empty").WithDetail("field", "title")
	}
	if n := utf8.RuneCountInString(title); n > v.cfg.MaxTitleLength {
		return errors.NewValidationError(
			fmt.Sprintf("title exceeds maximum length of %d characters", v.cfg.MaxTitleLength),
		).WithDetail("field", "title").WithDetail("actual_length", n)
	}
	if strings.TrimSpace(content) == "" && !v.cfg.AllowEmptyContent {
		return errors.NewValidationError("content cannot be empty").WithDetail("field", "content")
	}
	if n := utf8.RuneCountInString(content); n > v.cfg.MaxContentLength {
		return errors.NewValidationError(
			fmt.Sprintf("content exceeds maximum length of %d characters", v.cfg.MaxContentLength),
		).WithDetail("field", "content").WithDetail("actual_length", n)
	}
	return nil
}

// ValidateRecord runs struct tag validation over a persisted memo record
func (v *MemoValidator) ValidateRecord(record interface{}) error {
	if err := v.validate.Struct(record); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			appErr := errors.NewValidationError("invalid memo record")
			for _, fe := range fieldErrs {
				appErr.WithDetail(strings.ToLower(fe.Field()), fe.Tag())
			}
			return appErr
		}
		return errors.NewValidationError(err.Error())
	}
	return nil
}
