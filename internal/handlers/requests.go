package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Name            string `form:"name" validate:"required,min=3"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=6"`
	PasswordConfirm string `form:"password_confirm" validate:"eqfield=Password"`
}

// PasswordRequest is the new password form.
type PasswordRequest struct {
	Password        string `form:"password" validate:"required,min=6"`
	PasswordConfirm string `form:"password_confirm" validate:"eqfield=Password"`
}

// accountMessages maps account form fields to the message shown when they fail.
var accountMessages = map[string]string{
	"Name":            "Name must be at least 3 characters long.",
	"Email":           "Enter a valid e-mail address.",
	"Password":        "Password must be at least 6 characters long.",
	"PasswordConfirm": "Passwords do not match.",
}

// productMessages maps product form fields to the message shown when they fail.
var productMessages = map[string]string{
	"Name":        "Product name must be at least 3 characters long.",
	"Type":        "Choose a product type from the list.",
	"Quantity":    "Quantity cannot be negative.",
	"Description": "Description must be at least 10 characters long.",
	"Price":       "Price must be a number of zero or more.",
}

// validationMessage returns the text for the first failed field of err.
func validationMessage(err error, messages map[string]string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := messages[verrs[0].StructField()]; ok {
			return msg
		}
	}
	return "Please check the form and try again."
}
