// Package validation wraps go-playground/validator with the API's error shape.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the domain enums registered
// as tags: department, role and ticket_priority.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
			return domain.Department(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return domain.Role(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("ticket_priority", func(fl validator.FieldLevel) bool {
			return domain.TicketPriority(fl.Field().String()).Valid()
		})
		instance = v
	})
	return instance
}

// Struct validates v and converts failures into a 400 DomainError whose
// details map each failing field to the rule it broke.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("Invalid request", nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError(message(verrs[0]), details)
}

// Email reports whether s is a syntactically valid email address.
func Email(s string) bool {
	return Validator().Var(s, "required,email") == nil
}

func message(fe validator.FieldError) string {
	field := capitalize(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "department":
		return "Invalid department. Must be one of: IT, HR, Admin"
	case "role":
		return "Invalid role. Must be one of: user, agent, admin"
	case "ticket_priority":
		return "Invalid priority. Must be one of: low, medium, high, urgent"
	}
	return fmt.Sprintf("%s is invalid", field)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
