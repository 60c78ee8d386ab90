// Package validator wraps go-playground/validator with the domain
// tags used by request binding structs.
package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Domain enums. Registration only fails for empty tag names.
	_ = v.RegisterValidation("urgency", func(fl validator.FieldLevel) bool {
		return models.IsValidUrgency(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("resource_category", func(fl validator.FieldLevel) bool {
		return models.IsValidResourceCategory(fl.Field().String())
	})

	return v
}

// Struct validates the given binding struct and converts validator
// failures into a field-keyed ValidationError.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return relieferr.NewValidation("body", err.Error())
	}

	first := verrs[0]
	return relieferr.NewValidation(strings.ToLower(first.Field()), describe(first))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "urgency":
		return "must be one of: " + strings.Join(models.AllUrgencies(), ", ")
	case "role":
		roles := make([]string, 0, 3)
		for _, role := range models.AllRoles() {
			roles = append(roles, role.String())
		}
		return "must be one of: " + strings.Join(roles, ", ")
	case "resource_category":
		return "must be a known resource category"
	default:
		return "failed validation: " + fe.Tag()
	}
}
