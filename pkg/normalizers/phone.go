package normalizers

import (
	"strings"

	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
)

const (
	// DefaultCountryCode is applied to numbers written in local trunk format (leading 0).
	DefaultCountryCode = "27"

	minPhoneDigits = 8
	maxPhoneDigits = 15
)

var transportPrefixes = []string{"whatsapp:", "sms:", "tel:"}

// PhoneNormalizer turns raw phone input into the canonical guest key: "+" followed by the
// full international digits.
type PhoneNormalizer struct {
	CountryCode string
}

func NewPhoneNormalizer(countryCode string) PhoneNormalizer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return PhoneNormalizer{CountryCode: DigitsOnly(countryCode)}
}

// Normalize returns the canonical key or a ValidationError.
//
//	"27827001116", "+27827001116", "whatsapp:+27827001116", "0827001116" -> "+27827001116"
func (p PhoneNormalizer) Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, prefix := range transportPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			lower = lower[len(prefix):]
		}
	}

	digits := DigitsOnly(s)
	if digits == "" {
		return "", apperrors.NewValidationError("phone", "phone number must contain digits")
	}

	switch {
	case strings.HasPrefix(digits, "00"):
		// international dialing prefix
		digits = digits[2:]
	case strings.HasPrefix(digits, "0") && !strings.HasPrefix(strings.TrimSpace(s), "+"):
		digits = p.CountryCode + digits[1:]
	}

	if strings.HasPrefix(digits, "0") {
		return "", apperrors.NewValidationError("phone", "country code must not start with 0")
	}
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", apperrors.NewValidationErrorf("phone", "phone number must have between %d and %d digits, got %d",
			minPhoneDigits, maxPhoneDigits, len(digits))
	}

	return "+" + digits, nil
}

// Equal reports whether two raw inputs identify the same guest.
func (p PhoneNormalizer) Equal(a, b string) bool {
	na, err := p.Normalize(a)
	if err != nil {
		return false
	}
	nb, err := p.Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}
