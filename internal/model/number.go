package model

import "time"

// PhoneNumber is a WhatsApp number owned by a single user
type PhoneNumber struct {
	ID            int64      `json:"id"`
	OwnerID       int64      `json:"owner_id"`
	Phone         string     `json:"phone_number"`          // digits, country code included
	Description   string     `json:"description,omitempty"` // free text set by the owner
	IsActive      bool       `json:"is_active"`
	RedirectCount int64      `json:"redirect_count"` // lifetime redirects handed to this number
	LastUsed      *time.Time `json:"last_used,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsFresh reports whether the number has never received a redirect
func (n PhoneNumber) IsFresh() bool {
	return n.RedirectCount == 0
}

// RecentUsage is a number's redirect count over a trailing window.
// ForLink is the part of Total that went through one particular link.
type RecentUsage struct {
	Total   int64
	ForLink int64
}
