package authflow

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		return slices.Contains(Languages, fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register language validator: %v", err))
	}
	return v
}

// validateStruct returns the first failing field as a models.ValidationError.
func (s *Service) validateStruct(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return models.NewValidationError(err.Error())
	}
	fe := validationErrors[0]
	return models.NewFieldValidationError(fe.Field(), formatFieldError(fe))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "numeric":
		return "please enter birth year as numbers (YYYY)"
	case "language":
		return fmt.Sprintf("language must be one of %s", strings.Join(Languages, ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
