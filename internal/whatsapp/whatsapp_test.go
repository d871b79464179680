package whatsapp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		countryCode string
		expected    string
	}{
		{"already prefixed", "5541999887766", "55", "5541999887766"},
		{"missing country code", "41999887766", "55", "5541999887766"},
		{"formatting stripped", "+55 (41) 99988-7766", "55", "5541999887766"},
		{"dashes and spaces", "41 9998-87766", "55", "5541999887766"},
		{"other country", "4915112345678", "49", "4915112345678"},
		{"no country code configured", "(41) 99988-7766", "", "41999887766"},
		{"no digits", "abc", "55", ""},
		{"empty", "", "55", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.input, tt.countryCode))
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"mobile with country code", "5541999887766", "5541999887766", nil},
		{"landline with country code", "554133334444", "554133334444", nil},
		{"mobile without country code", "41999887766", "5541999887766", nil},
		{"landline without country code", "4133334444", "554133334444", nil},
		{"formatted", "(41) 99988-7766", "5541999887766", nil},
		{"empty", "", "", ErrEmptyPhone},
		{"letters only", "phone", "", ErrEmptyPhone},
		{"too short", "999887766", "", ErrPhoneTooShort},
		{"area code equal to country code", "55999887766", "5555999887766", nil},
		{"too long with country code", "55419998877665", "", ErrPhoneTooLong},
		{"too long without country code", "419998877665", "", ErrPhoneTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePhone(tt.input, "55")
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBuildURL(t *testing.T) {
	t.Run("without message", func(t *testing.T) {
		assert.Equal(t, "https://wa.me/5541999887766", BuildURL("41999887766", "", "55"))
	})

	t.Run("message is escaped", func(t *testing.T) {
		got := BuildURL("5541999887766", "Olá! Quero saber & comprar", "55")
		assert.Equal(t, "https://wa.me/5541999887766?text=Ol%C3%A1%21%20Quero%20saber%20%26%20comprar", got)

		u, err := url.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, "wa.me", u.Host)
		assert.Equal(t, "/5541999887766", u.Path)
		assert.Equal(t, "Olá! Quero saber & comprar", u.Query().Get("text"))
	})

	t.Run("plus sign survives", func(t *testing.T) {
		u, err := url.Parse(BuildURL("5541999887766", "1+1 = 2", "55"))
		require.NoError(t, err)
		assert.Equal(t, "1+1 = 2", u.Query().Get("text"))
	})
}
