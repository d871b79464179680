package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// RedirectLogRepository stores one row per completed number selection
type RedirectLogRepository struct {
	db *DB
}

func NewRedirectLogRepository(db *DB) *RedirectLogRepository {
	return &RedirectLogRepository{db: db}
}

// Insert appends entry and returns its id
func (r *RedirectLogRepository) Insert(ctx context.Context, entry *model.RedirectLogEntry) (int64, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	id, err := r.db.insert(ctx,
		"INSERT INTO redirect_logs (link_id, number_id, created_at, ip_address, user_agent, message) VALUES (?, ?, ?, ?, ?, ?)",
		entry.LinkID, entry.NumberID, dbTime(entry.CreatedAt), entry.IP, entry.UserAgent, entry.Message,
	)
	if err != nil {
		return 0, err
	}
	entry.ID = id
	return id, nil
}

// PatchLocation attaches a resolved location to an existing row
func (r *RedirectLogRepository) PatchLocation(ctx context.Context, logID int64, loc model.Location) error {
	return r.db.updateOne(ctx,
		"UPDATE redirect_logs SET city = ?, region = ?, country = ?, latitude = ?, longitude = ? WHERE id = ?",
		loc.City, loc.Region, loc.Country, loc.Latitude, loc.Longitude, logID,
	)
}

// RecentUsage counts rows created at or after since for each number in
// numberIDs, split out by linkID. Both counts come from one statement so they
// share a snapshot. Numbers without rows are absent from the map.
func (r *RedirectLogRepository) RecentUsage(ctx context.Context, numberIDs []int64, linkID int64, since time.Time) (map[int64]model.RecentUsage, error) {
	usage := make(map[int64]model.RecentUsage, len(numberIDs))
	if len(numberIDs) == 0 {
		return usage, nil
	}

	args := make([]any, 0, len(numberIDs)+2)
	args = append(args, linkID, dbTime(since))
	for _, id := range numberIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(numberIDs)), ", ")

	rows, err := r.db.query(ctx,
		`SELECT number_id, COUNT(*), COALESCE(SUM(CASE WHEN link_id = ? THEN 1 ELSE 0 END), 0)
		 FROM redirect_logs
		 WHERE created_at >= ? AND number_id IN (`+placeholders+`)
		 GROUP BY number_id`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int64
			u  model.RecentUsage
		)
		if err := rows.Scan(&id, &u.Total, &u.ForLink); err != nil {
			return nil, err
		}
		usage[id] = u
	}
	return usage, rows.Err()
}

// CountByLink counts every row of the link
func (r *RedirectLogRepository) CountByLink(ctx context.Context, linkID int64) (int64, error) {
	return r.db.count(ctx, "SELECT COUNT(*) FROM redirect_logs WHERE link_id = ?", linkID)
}

func (r *RedirectLogRepository) GetByID(ctx context.Context, id int64) (*model.RedirectLogEntry, error) {
	e := &model.RedirectLogEntry{}
	var (
		city, region, country sql.NullString
		lat, lon              sql.NullFloat64
	)
	err := r.db.queryRow(ctx,
		`SELECT id, link_id, number_id, created_at, ip_address, user_agent, message,
		        city, region, country, latitude, longitude
		 FROM redirect_logs WHERE id = ?`, id,
	).Scan(&e.ID, &e.LinkID, &e.NumberID, &e.CreatedAt, &e.IP, &e.UserAgent, &e.Message,
		&city, &region, &country, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if city.Valid || country.Valid || lat.Valid {
		e.Location = &model.Location{
			City:      city.String,
			Region:    region.String,
			Country:   country.String,
			Latitude:  lat.Float64,
			Longitude: lon.Float64,
		}
	}
	return e, nil
}
