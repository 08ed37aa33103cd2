package utils

import (
	"errors"
	"regexp"
)

// Mainland-China mobile number: exactly 11 digits, leading 1.
var phonePattern = regexp.MustCompile(`^1\d{10}$`)

// ValidatePhone checks the phone number shape used by the SMS login path.
func ValidatePhone(phone string) error {
	if phone == "" {
		return errors.New("phone is required")
	}
	if !phonePattern.MatchString(phone) {
		return errors.New("invalid phone number format")
	}
	return nil
}
