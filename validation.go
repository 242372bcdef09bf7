package session

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const (
	minPasswordLength = 6
	maxPhoneLength    = 15
)

// DefaultPhoneRegion is used to parse phone numbers given without a country prefix.
var DefaultPhoneRegion = "RS"

// LoginPayload is the body of POST /api/auth/signin.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate runs the client side checks.
func (p LoginPayload) Validate() error {
	return toValidationError(validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required.Error("Email is required"), is.Email.Error("Email is invalid")),
		validation.Field(&p.Password,
			validation.Required.Error("Password is required"),
			validation.RuneLength(minPasswordLength, 0).Error("Password must be at least 6 characters"),
		),
	))
}

// RegistrationPayload is the body of POST /api/auth/signup.
type RegistrationPayload struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Address         string `json:"address"`
	City            string `json:"city"`
	PostalCode      string `json:"postalCode"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phoneNumber"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate runs the client side checks, reporting every failing field.
func (p RegistrationPayload) Validate() error {
	return toValidationError(validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required.Error("First name is required")),
		validation.Field(&p.LastName, validation.Required.Error("Last name is required")),
		validation.Field(&p.Address, validation.Required.Error("Address is required")),
		validation.Field(&p.City, validation.Required.Error("City is required")),
		validation.Field(&p.PostalCode, validation.Required.Error("Postal code is required")),
		validation.Field(&p.Email, validation.Required.Error("Email is required"), is.Email.Error("Email is invalid")),
		validation.Field(&p.PhoneNumber,
			validation.Required.Error("Phone is required"),
			validation.RuneLength(0, maxPhoneLength).Error("Phone number must be at most 15 characters"),
			validation.By(validPhoneNumber),
		),
		validation.Field(&p.Password,
			validation.Required.Error("Password is required"),
			validation.RuneLength(minPasswordLength, 0).Error("Password must be at least 6 characters"),
		),
		validation.Field(&p.ConfirmPassword,
			validation.Required.Error("Confirm password is required"),
			validation.By(stringEquals(p.Password, "Passwords do not match")),
		),
	))
}

func validPhoneNumber(value any) error {
	s, _ := value.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return errors.New("Phone number is invalid")
	}
	return nil
}

func stringEquals(str, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(message)
		}
		return nil
	}
}

// toValidationError flattens ozzo errors into a field level ValidationError.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return derive(ErrValidation, err.Error(), nil)
	}
	fields := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		if ferr != nil {
			fields[field] = ferr.Error()
		}
	}
	return NewValidationError(fields)
}
