package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError represents a field validation error reported to clients as
// a {field, message} pair.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DecodeAndValidate decodes a JSON request body and validates it against the
// struct's validation tags.
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// FormatValidationErrors converts validator errors to the structured list
// returned in 400 responses. Never exposes internals.
func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, ValidationError{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
	}

	return errors
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "Este campo es obligatorio"
	case "email":
		return "Email inválido"
	case "min":
		return "Valor demasiado corto"
	case "max":
		return "Valor demasiado largo"
	case "gt":
		return "Debe ser mayor que " + e.Param()
	case "gte":
		return "Debe ser mayor o igual que " + e.Param()
	case "lte":
		return "Debe ser menor o igual que " + e.Param()
	case "oneof":
		return "Valor fuera del conjunto permitido"
	default:
		return "Valor inválido"
	}
}
