package model

import "time"

// NumberStat is one row of the per-number breakdown
type NumberStat struct {
	NumberID      int64      `json:"number_id"`
	Phone         string     `json:"phone_number"`
	Description   string     `json:"description,omitempty"`
	IsActive      bool       `json:"is_active"`
	Redirects     int64      `json:"redirects"`
	LastRedirect  *time.Time `json:"last_redirect,omitempty"`
	ShareOfTotals float64    `json:"share"` // fraction of the owner's valid redirects
}

// LinkStat summarizes a single custom link
type LinkStat struct {
	LinkID         int64   `json:"link_id"`
	Name           string  `json:"link_name"`
	IsActive       bool    `json:"is_active"`
	Clicks         int64   `json:"clicks"`
	Redirects      int64   `json:"redirects"`
	ConversionRate float64 `json:"conversion_rate"` // redirects / clicks, percent
}

// RecentRedirect is one line of the activity feed.
// Phone is empty when the number has since been deleted.
type RecentRedirect struct {
	LogID     int64     `json:"log_id"`
	CreatedAt time.Time `json:"created_at"`
	LinkName  string    `json:"link_name"`
	NumberID  int64     `json:"number_id"`
	Phone     string    `json:"phone_number,omitempty"`
	IP        string    `json:"ip_address,omitempty"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
}

// LocationPoint aggregates redirects by resolved city for the map view
type LocationPoint struct {
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int64   `json:"count"`
}

// OwnerStats is the statistics payload for one owner
type OwnerStats struct {
	OwnerID           int64            `json:"owner_id"`
	TotalLinks        int64            `json:"total_links"`
	ActiveNumbers     int64            `json:"active_numbers"`
	TotalRedirects    int64            `json:"total_redirects"`
	RedirectsToday    int64            `json:"redirects_today"`
	OrphanedRedirects int64            `json:"orphaned_redirects"`
	ByNumber          []NumberStat     `json:"by_number"`
	Links             []LinkStat       `json:"links"`
	Recent            []RecentRedirect `json:"recent"`
	Locations         []LocationPoint  `json:"locations"`
	GeneratedAt       time.Time        `json:"generated_at"`
}
