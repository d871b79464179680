package model

import (
	"fmt"
	"time"
)

// Location is the best-effort geolocation of a requester IP
type Location struct {
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RedirectLogEntry records one redirect that reached number selection
type RedirectLogEntry struct {
	ID        int64     `json:"id"`
	LinkID    int64     `json:"link_id"`
	NumberID  int64     `json:"number_id"`
	CreatedAt time.Time `json:"created_at"`
	IP        string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Message   string    `json:"message,omitempty"`
	Location  *Location `json:"location,omitempty"` // filled in later, or never
}

// RedirectRequest is one inbound visit to a custom link
type RedirectRequest struct {
	Key       LinkKey
	IP        string
	UserAgent string
}

// RedirectTarget is the outcome handed back to the HTTP layer.
// Link.ClickCount is always zero: a cached link carries no counters, so the
// count is left out on every path. Read it from storage when needed.
type RedirectTarget struct {
	URL    string      // https://wa.me/<digits>?text=<message>
	Link   CustomLink  // as resolved, without ClickCount
	Number PhoneNumber // as selected, before the counter increment
	LogID  int64       // 0 when the log insert failed
}

// WarningKind classifies a non-fatal failure absorbed during a redirect
type WarningKind string

const (
	WarningBookkeeping WarningKind = "bookkeeping"
	WarningBalancer    WarningKind = "balancer_fallback"
	WarningGeolocation WarningKind = "geolocation"
	WarningCache       WarningKind = "cache"
)

// Warning is a swallowed failure that did not change the redirect outcome
type Warning struct {
	Kind WarningKind
	Op   string // e.g. "increment_click_count"
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %s: %v", w.Kind, w.Op, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// RedirectResult carries the target plus every non-fatal failure seen on the way
type RedirectResult struct {
	Target   RedirectTarget
	Warnings []Warning
}
