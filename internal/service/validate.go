// Package service implements the catalog's application logic on top of the store.
package service

import (
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/shelflineapp/shelfline-server/internal/errors"
)

// validate is a shared validator instance for request validation.
var validate = func() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for field names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		// Remove any options (like omitempty, -)
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})
	return v
}()

// formatValidationError converts validator errors into domain validation
// errors that carry the offending argument values.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		// Return first validation error as a domain error
		for _, e := range validationErrs {
			field := e.Field()
			details := map[string]any{field: e.Value()}
			switch e.Tag() {
			case "required":
				return domainerrors.ValidationWithDetails(field+" is required", details)
			case "min":
				return domainerrors.ValidationWithDetails(field+" must be at least "+e.Param()+" characters", details)
			case "max":
				return domainerrors.ValidationWithDetails(field+" exceeds maximum length of "+e.Param()+" characters", details)
			case "gte":
				return domainerrors.ValidationWithDetails(field+" must be at least "+e.Param(), details)
			case "lte":
				return domainerrors.ValidationWithDetails(field+" must be at most "+e.Param(), details)
			default:
				return domainerrors.ValidationWithDetails(field+" is invalid", details)
			}
		}
	}
	return err
}
