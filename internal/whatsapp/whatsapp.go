package whatsapp

import (
	"errors"
	"net/url"
	"strings"
)

// BaseURL is the click-to-chat endpoint
const BaseURL = "https://wa.me/"

// DefaultCountryCode is prefixed to numbers stored without one
const DefaultCountryCode = "55"

// National numbers are area code plus an 8 or 9 digit subscriber number
const (
	minNationalDigits = 10
	maxNationalDigits = 11
)

var (
	ErrEmptyPhone    = errors.New("phone number has no digits")
	ErrPhoneTooShort = errors.New("phone number is too short")
	ErrPhoneTooLong  = errors.New("phone number is too long")
)

// NormalizePhone strips every non-digit and prefixes countryCode when the
// result does not already start with it.
func NormalizePhone(raw, countryCode string) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	if countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits
}

// ValidatePhone checks the digit count of raw and returns it normalized.
// A number is accepted with the country code followed by 10 or 11 national
// digits, or as 10 or 11 national digits alone.
func ValidatePhone(raw, countryCode string) (string, error) {
	digits := digitsOnly(raw)
	if digits == "" {
		return "", ErrEmptyPhone
	}

	if countryCode != "" && strings.HasPrefix(digits, countryCode) {
		if national := len(digits) - len(countryCode); national >= minNationalDigits && national <= maxNationalDigits {
			return digits, nil
		}
	}

	switch {
	case len(digits) < minNationalDigits:
		return "", ErrPhoneTooShort
	case len(digits) > maxNationalDigits:
		return "", ErrPhoneTooLong
	}
	// an area code may equal the country code, so prefix unconditionally
	return countryCode + digits, nil
}

// BuildURL returns the wa.me link for phone with message pre-filled.
// An empty message yields a bare link.
func BuildURL(phone, message, countryCode string) string {
	u := BaseURL + NormalizePhone(phone, countryCode)
	if message == "" {
		return u
	}
	// wa.me renders "+" literally, so spaces go out as %20
	return u + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
