package validator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/darkodi/whatsapp-redirect/internal/errors"
	"github.com/darkodi/whatsapp-redirect/internal/whatsapp"
)

var linkNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// LinkValidator validates link keys and phone input
type LinkValidator struct {
	maxLength   int
	reserved    []string
	countryCode string
}

// NewLinkValidator creates a validator with default settings
func NewLinkValidator() *LinkValidator {
	return &LinkValidator{
		maxLength:   64,
		reserved:    []string{"api", "admin", "health", "metrics", "static", "favicon.ico"},
		countryCode: whatsapp.DefaultCountryCode,
	}
}

// ValidateLinkName validates a custom link name
func (v *LinkValidator) ValidateLinkName(name string) *errors.AppError {
	if name == "" {
		return errors.InvalidLinkName("link name is required")
	}

	if len(name) > v.maxLength {
		return errors.InvalidLinkName("link name must be at most " + strconv.Itoa(v.maxLength) + " characters")
	}

	if v.IsReserved(name) {
		return errors.InvalidLinkName("this name is reserved")
	}

	if !linkNamePattern.MatchString(name) {
		return errors.InvalidLinkName("link name can only contain letters, numbers, hyphens, and underscores")
	}

	return nil
}

// ValidateOwnerPrefix parses the /{prefix}/{link} segment into an owner id
func (v *LinkValidator) ValidateOwnerPrefix(prefix string) (int64, *errors.AppError) {
	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidParameter("prefix", "owner prefix must be a positive integer")
	}
	return id, nil
}

// ValidatePhone checks a phone number and returns its normalized digits
func (v *LinkValidator) ValidatePhone(raw string) (string, *errors.AppError) {
	digits, err := whatsapp.ValidatePhone(raw, v.countryCode)
	if err != nil {
		return "", errors.InvalidParameter("phone_number", err.Error())
	}
	return digits, nil
}

// IsReserved reports whether name collides with a fixed route
func (v *LinkValidator) IsReserved(name string) bool {
	for _, r := range v.reserved {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}

// ============================================================
// CONFIGURATION METHODS
// ============================================================

// WithMaxLength sets maximum link name length
func (v *LinkValidator) WithMaxLength(length int) *LinkValidator {
	v.maxLength = length
	return v
}

// WithReserved adds names to the reserved list
func (v *LinkValidator) WithReserved(names ...string) *LinkValidator {
	v.reserved = append(v.reserved, names...)
	return v
}

// WithCountryCode sets the country code used for phone validation
func (v *LinkValidator) WithCountryCode(cc string) *LinkValidator {
	v.countryCode = cc
	return v
}
