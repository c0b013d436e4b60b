package render

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("cardnumber", validateCardNumber)
	_ = validate.RegisterValidation("fullname", validateFullName)
	_ = validate.RegisterValidation("username", validateUsername)
}

// validateUsername allows 3 to 30 chars of latin letters, digits, '.', '_' and '-'
func validateUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()

	if len(username) < 3 || len(username) > 30 {
		return false
	}

	for i := 0; i < len(username); i++ {
		c := username[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}

	return true
}

// validateCardNumber accepts plain 16 digit numbers only
func validateCardNumber(fl validator.FieldLevel) bool {
	number := fl.Field().String()

	if len(number) != 16 {
		return false
	}

	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}

	return true
}

// validateFullName expects exactly "Lastname Firstname Patronymic",
// each part at least 2 characters
func validateFullName(fl validator.FieldLevel) bool {
	parts := strings.Fields(fl.Field().String())

	if len(parts) != 3 {
		return false
	}

	for _, part := range parts {
		if len([]rune(part)) < 2 {
			return false
		}
	}

	return true
}
