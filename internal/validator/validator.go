package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/smart-shopper/internal/models"
)

// Validator is a wrapper around the validator library.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance with the marketplace-specific rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("sortmode", func(fl validator.FieldLevel) bool {
		_, err := models.ParseSortMode(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("source", func(fl validator.FieldLevel) bool {
		_, err := models.ParseSource(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{validate: v}
}

// ValidateStruct validates a struct based on its tags. The first failing field
// is reported as a models.ValidationError.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &models.ValidationError{Field: fe.Field(), Reason: reason(fe)}
	}
	return fmt.Errorf("validation failed: %w", err)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be empty"
	case "oneof":
		return "must be one of " + fe.Param()
	case "sortmode":
		return "unknown sort mode"
	case "source":
		return "unknown source"
	case "url", "http_url":
		return "must be a valid URL"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
	return "failed " + fe.Tag()
}
