package model

import (
	"strconv"
	"time"
)

// CustomLink is a named entry point that redirects to one of its owner's numbers
type CustomLink struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"owner_id"`
	Name       string    `json:"link_name"`
	Message    string    `json:"message,omitempty"` // pre-filled WhatsApp text
	IsActive   bool      `json:"is_active"`
	ClickCount int64     `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// LinkKey identifies a link at redirect time.
// OwnerID is set when the request came through the /{prefix}/{name} route.
type LinkKey struct {
	Name    string
	OwnerID *int64
}

// String renders the key the way it appears in the URL path
func (k LinkKey) String() string {
	if k.OwnerID == nil {
		return k.Name
	}
	return strconv.FormatInt(*k.OwnerID, 10) + "/" + k.Name
}
