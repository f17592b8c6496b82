package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var roleCodePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validator wraps the validator instance
type Validator struct {
	validate *validator.Validate
}

// ValidationError carries one message per failed field
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}

// New creates a new validator instance with the domain tags registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// role_code: role and department codes such as CE or FINANCE_DEPT
	_ = v.RegisterValidation("role_code", func(fl validator.FieldLevel) bool {
		return roleCodePattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Validate validates a struct
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return v.formatValidationError(err)
	}
	return nil
}

// ValidateVar validates a single variable
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	if err := v.validate.Var(field, tag); err != nil {
		return v.formatValidationError(err)
	}
	return nil
}

func (v *Validator) formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		ve := &ValidationError{}
		for _, e := range validationErrors {
			ve.Fields = append(ve.Fields, formatFieldError(e))
		}
		return ve
	}
	return err
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "role_code":
		return fmt.Sprintf("%s must be a role code (letters, digits, underscore)", field)
	default:
		return fmt.Sprintf("%s failed validation for '%s'", field, e.Tag())
	}
}

// DefaultValidator is the global validator instance
var DefaultValidator = New()

// Validate validates a struct using the default validator
func Validate(i interface{}) error {
	return DefaultValidator.Validate(i)
}

// ValidateVar validates a single variable using the default validator
func ValidateVar(field interface{}, tag string) error {
	return DefaultValidator.ValidateVar(field, tag)
}
