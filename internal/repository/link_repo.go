package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/darkodi/whatsapp-redirect/internal/model"
)

const linkColumns = "id, owner_id, link_name, message, is_active, click_count, created_at"

// LinkRepository stores custom links
type LinkRepository struct {
	db *DB
}

func NewLinkRepository(db *DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// FindActiveLink resolves an active link by name, scoped to an owner when
// the key carries one. Without an owner the oldest matching link wins.
func (r *LinkRepository) FindActiveLink(ctx context.Context, key model.LinkKey) (*model.CustomLink, error) {
	var row *sql.Row
	if key.OwnerID != nil {
		row = r.db.queryRow(ctx,
			"SELECT "+linkColumns+" FROM custom_links WHERE link_name = ? AND owner_id = ? AND is_active = ?",
			key.Name, *key.OwnerID, true,
		)
	} else {
		row = r.db.queryRow(ctx,
			"SELECT "+linkColumns+" FROM custom_links WHERE link_name = ? AND is_active = ? ORDER BY id LIMIT 1",
			key.Name, true,
		)
	}
	return scanLink(row)
}

// GetByID returns a link regardless of its active flag
func (r *LinkRepository) GetByID(ctx context.Context, id int64) (*model.CustomLink, error) {
	return scanLink(r.db.queryRow(ctx, "SELECT "+linkColumns+" FROM custom_links WHERE id = ?", id))
}

// ListByOwner returns all of an owner's links ordered by id
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.CustomLink, error) {
	rows, err := r.db.query(ctx, "SELECT "+linkColumns+" FROM custom_links WHERE owner_id = ? ORDER BY id", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.CustomLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// Create inserts link and fills in its id and creation time
func (r *LinkRepository) Create(ctx context.Context, link *model.CustomLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now()
	}
	id, err := r.db.insert(ctx,
		"INSERT INTO custom_links (owner_id, link_name, message, is_active, click_count, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		link.OwnerID, link.Name, link.Message, link.IsActive, link.ClickCount, dbTime(link.CreatedAt),
	)
	if err != nil {
		return err
	}
	link.ID = id
	return nil
}

// IncrementClickCount adds one click to the link
func (r *LinkRepository) IncrementClickCount(ctx context.Context, linkID int64) error {
	return r.db.updateOne(ctx, "UPDATE custom_links SET click_count = click_count + 1 WHERE id = ?", linkID)
}

func (r *LinkRepository) SetActive(ctx context.Context, linkID int64, active bool) error {
	return r.db.updateOne(ctx, "UPDATE custom_links SET is_active = ? WHERE id = ?", active, linkID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*model.CustomLink, error) {
	link := &model.CustomLink{}
	err := s.Scan(&link.ID, &link.OwnerID, &link.Name, &link.Message, &link.IsActive, &link.ClickCount, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}
