package middleware

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator instance
var validate *validator.Validate

// skuPattern matches a normalized stock-keeping unit: uppercase letters,
// digits and dashes.
var skuPattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("sku", func(fl validator.FieldLevel) bool {
		return skuPattern.MatchString(fl.Field().String())
	})
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidatePrice checks a monetary amount at the schema layer: strictly
// positive with at most two fractional digits. The validator library has no
// decimal awareness, so amounts are checked here before they reach the
// service.
func ValidatePrice(field string, price decimal.Decimal) *ValidationError {
	if !price.IsPositive() {
		return &ValidationError{Field: field, Message: "Value must be greater than 0"}
	}
	if price.Exponent() < -2 {
		return &ValidationError{Field: field, Message: "Value must have at most 2 decimal places"}
	}
	return nil
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return errors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "sku":
		return "Must contain only uppercase letters, digits and dashes"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	default:
		return "Invalid value"
	}
}
