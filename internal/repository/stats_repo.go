package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// StatsRepository answers the read-only statistics queries.
// A redirect belongs to the owner of its link. Rows whose number was deleted
// are orphans: they count for links but not for numbers.
type StatsRepository struct {
	db *DB
}

func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Totals holds the headline counters of an owner
type Totals struct {
	Links             int64
	ActiveNumbers     int64
	Redirects         int64
	RedirectsSince    int64
	OrphanedRedirects int64
}

// Totals computes headline counters; RedirectsSince counts valid rows at or after since
func (r *StatsRepository) Totals(ctx context.Context, ownerID int64, since time.Time) (Totals, error) {
	var (
		t   Totals
		err error
	)

	if t.Links, err = r.db.count(ctx, "SELECT COUNT(*) FROM custom_links WHERE owner_id = ?", ownerID); err != nil {
		return t, err
	}
	if t.ActiveNumbers, err = r.db.count(ctx,
		"SELECT COUNT(*) FROM whatsapp_numbers WHERE owner_id = ? AND is_active = ?", ownerID, true,
	); err != nil {
		return t, err
	}

	const valid = `SELECT COUNT(*) FROM redirect_logs r
		JOIN custom_links l ON l.id = r.link_id
		JOIN whatsapp_numbers n ON n.id = r.number_id
		WHERE l.owner_id = ?`
	if t.Redirects, err = r.db.count(ctx, valid, ownerID); err != nil {
		return t, err
	}
	if t.RedirectsSince, err = r.db.count(ctx, valid+" AND r.created_at >= ?", ownerID, dbTime(since)); err != nil {
		return t, err
	}

	if t.OrphanedRedirects, err = r.db.count(ctx,
		`SELECT COUNT(*) FROM redirect_logs r
		JOIN custom_links l ON l.id = r.link_id
		LEFT JOIN whatsapp_numbers n ON n.id = r.number_id
		WHERE l.owner_id = ? AND n.id IS NULL`, ownerID,
	); err != nil {
		return t, err
	}

	return t, nil
}

// ByNumber returns every number of the owner with its logged redirects, busiest first
func (r *StatsRepository) ByNumber(ctx context.Context, ownerID int64) ([]model.NumberStat, error) {
	rows, err := r.db.query(ctx,
		`SELECT n.id, n.phone_number, n.description, n.is_active, n.last_used, COUNT(r.id) AS redirects
		FROM whatsapp_numbers n
		LEFT JOIN redirect_logs r ON r.number_id = n.id
		WHERE n.owner_id = ?
		GROUP BY n.id, n.phone_number, n.description, n.is_active, n.last_used
		ORDER BY redirects DESC, n.id`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []model.NumberStat{}
	for rows.Next() {
		var (
			s        model.NumberStat
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&s.NumberID, &s.Phone, &s.Description, &s.IsActive, &lastUsed, &s.Redirects); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			s.LastRedirect = &t
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// TopLinks returns the owner's links by clicks, with every logged redirect
func (r *StatsRepository) TopLinks(ctx context.Context, ownerID int64, limit int) ([]model.LinkStat, error) {
	rows, err := r.db.query(ctx,
		`SELECT l.id, l.link_name, l.is_active, l.click_count, COUNT(r.id) AS redirects
		FROM custom_links l
		LEFT JOIN redirect_logs r ON r.link_id = l.id
		WHERE l.owner_id = ?
		GROUP BY l.id, l.link_name, l.is_active, l.click_count
		ORDER BY l.click_count DESC, l.id
		LIMIT ?`, ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []model.LinkStat{}
	for rows.Next() {
		var s model.LinkStat
		if err := rows.Scan(&s.LinkID, &s.Name, &s.IsActive, &s.Clicks, &s.Redirects); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Recent returns the latest redirects of the owner. Orphans come back without a phone.
func (r *StatsRepository) Recent(ctx context.Context, ownerID int64, limit int) ([]model.RecentRedirect, error) {
	rows, err := r.db.query(ctx,
		`SELECT r.id, r.created_at, l.link_name, r.number_id, n.phone_number, r.ip_address, r.city, r.country
		FROM redirect_logs r
		JOIN custom_links l ON l.id = r.link_id
		LEFT JOIN whatsapp_numbers n ON n.id = r.number_id
		WHERE l.owner_id = ?
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recent := []model.RecentRedirect{}
	for rows.Next() {
		var (
			rr                   model.RecentRedirect
			phone, city, country sql.NullString
		)
		if err := rows.Scan(&rr.LogID, &rr.CreatedAt, &rr.LinkName, &rr.NumberID, &phone, &rr.IP, &city, &country); err != nil {
			return nil, err
		}
		rr.Phone = phone.String
		rr.City = city.String
		rr.Country = country.String
		recent = append(recent, rr)
	}
	return recent, rows.Err()
}

// Locations groups the owner's geolocated redirects by city
func (r *StatsRepository) Locations(ctx context.Context, ownerID int64, limit int) ([]model.LocationPoint, error) {
	rows, err := r.db.query(ctx,
		`SELECT r.city, COALESCE(r.country, ''), AVG(r.latitude), AVG(r.longitude), COUNT(*) AS hits
		FROM redirect_logs r
		JOIN custom_links l ON l.id = r.link_id
		WHERE l.owner_id = ? AND r.city IS NOT NULL AND r.city <> '' AND r.latitude IS NOT NULL
		GROUP BY r.city, r.country
		ORDER BY hits DESC, r.city
		LIMIT ?`, ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []model.LocationPoint{}
	for rows.Next() {
		var p model.LocationPoint
		if err := rows.Scan(&p.City, &p.Country, &p.Latitude, &p.Longitude, &p.Count); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
