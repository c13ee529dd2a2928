package phone

import (
	"errors"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhoneNumber is returned when a phone number cannot be parsed or validated.
var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// Normalize parses a phone number using libphonenumber and returns E.164 format.
// Requires a '+' prefix (no default region). Only the country code and number
// length are checked; whether the number is assigned is left to the provider,
// so fictional ranges such as +1 555 pass.
func Normalize(input string) (string, error) {
	plusCount := 0
	for _, r := range input {
		switch {
		case r == '+':
			plusCount++
		case r >= '0' && r <= '9', r == ' ', r == '-', r == '(', r == ')', r == '.':
		default:
			return "", ErrInvalidPhoneNumber
		}
	}
	if plusCount != 1 || input[0] != '+' {
		return "", ErrInvalidPhoneNumber
	}

	num, err := phonenumbers.Parse(input, "")
	if err != nil {
		return "", ErrInvalidPhoneNumber
	}
	if phonenumbers.IsPossibleNumberWithReason(num) != phonenumbers.IS_POSSIBLE {
		return "", ErrInvalidPhoneNumber
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
