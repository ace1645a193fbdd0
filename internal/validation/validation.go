// File: internal/validation/validation.go

// Package validation checks login and signup form fields before anything is sent
// to the identity provider.
package validation

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Messages shown to the user when a field is rejected.
const (
	MsgInvalidUserName = "Invalid username! Must start with a letter (3-16 chars)."
	MsgInvalidEmail    = "Invalid email format!"
	MsgWeakPassword    = "Password must be 8+ contains (lowercase, uppercase, digit, symbol)."
)

// Field names reported in Error.
const (
	FieldUserName = "userName"
	FieldEmail    = "email"
	FieldPassword = "password"
)

// Error reports the first field that failed validation.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var userNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{2,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register adds the "username" and "strongpassword" tags to v.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("username", validUserName); err != nil {
		return err
	}
	return v.RegisterValidation("strongpassword", strongPassword)
}

func validUserName(fl validator.FieldLevel) bool {
	return userNamePattern.MatchString(fl.Field().String())
}

func strongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if utf8.RuneCountInString(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

func check(value, tag, field, message string) error {
	if err := validate.Var(value, tag); err != nil {
		return &Error{Field: field, Message: message}
	}
	return nil
}

// Email returns an *Error unless s is a well-formed email address.
func Email(s string) error {
	return check(s, "required,email", FieldEmail, MsgInvalidEmail)
}

// Password requires 8+ characters with a lowercase letter, an uppercase letter, a digit and a symbol.
func Password(s string) error {
	return check(s, "required,strongpassword", FieldPassword, MsgWeakPassword)
}

// UserName requires 3-16 characters: a leading letter, then letters, digits or underscores.
func UserName(s string) error {
	return check(s, "required,username", FieldUserName, MsgInvalidUserName)
}
