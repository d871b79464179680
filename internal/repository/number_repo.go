package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/model"
)

const numberColumns = "id, owner_id, phone_number, description, is_active, redirect_count, last_used, created_at"

// NumberRepository stores WhatsApp numbers
type NumberRepository struct {
	db *DB
}

func NewNumberRepository(db *DB) *NumberRepository {
	return &NumberRepository{db: db}
}

// FindActiveByOwner returns the owner's active numbers ordered by id
func (r *NumberRepository) FindActiveByOwner(ctx context.Context, ownerID int64) ([]model.PhoneNumber, error) {
	return r.list(ctx,
		"SELECT "+numberColumns+" FROM whatsapp_numbers WHERE owner_id = ? AND is_active = ? ORDER BY id",
		ownerID, true,
	)
}

// ListByOwner returns every number of the owner, active or not
func (r *NumberRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.PhoneNumber, error) {
	return r.list(ctx, "SELECT "+numberColumns+" FROM whatsapp_numbers WHERE owner_id = ? ORDER BY id", ownerID)
}

func (r *NumberRepository) GetByID(ctx context.Context, id int64) (*model.PhoneNumber, error) {
	return scanNumber(r.db.queryRow(ctx, "SELECT "+numberColumns+" FROM whatsapp_numbers WHERE id = ?", id))
}

// Create inserts n and fills in its id and creation time
func (r *NumberRepository) Create(ctx context.Context, n *model.PhoneNumber) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	var lastUsed *time.Time
	if n.LastUsed != nil {
		t := dbTime(*n.LastUsed)
		lastUsed = &t
	}
	id, err := r.db.insert(ctx,
		"INSERT INTO whatsapp_numbers (owner_id, phone_number, description, is_active, redirect_count, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		n.OwnerID, n.Phone, n.Description, n.IsActive, n.RedirectCount, lastUsed, dbTime(n.CreatedAt),
	)
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// IncrementRedirectCount adds one redirect to the number and stamps last_used
func (r *NumberRepository) IncrementRedirectCount(ctx context.Context, numberID int64, at time.Time) error {
	return r.db.updateOne(ctx,
		"UPDATE whatsapp_numbers SET redirect_count = redirect_count + 1, last_used = ? WHERE id = ?",
		dbTime(at), numberID,
	)
}

func (r *NumberRepository) SetActive(ctx context.Context, numberID int64, active bool) error {
	return r.db.updateOne(ctx, "UPDATE whatsapp_numbers SET is_active = ? WHERE id = ?", active, numberID)
}

// Delete removes the number. Its redirect log rows are kept.
func (r *NumberRepository) Delete(ctx context.Context, numberID int64) error {
	return r.db.updateOne(ctx, "DELETE FROM whatsapp_numbers WHERE id = ?", numberID)
}

func (r *NumberRepository) list(ctx context.Context, query string, args ...any) ([]model.PhoneNumber, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []model.PhoneNumber
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, *n)
	}
	return numbers, rows.Err()
}

func scanNumber(s scanner) (*model.PhoneNumber, error) {
	n := &model.PhoneNumber{}
	var lastUsed sql.NullTime
	err := s.Scan(&n.ID, &n.OwnerID, &n.Phone, &n.Description, &n.IsActive, &n.RedirectCount, &lastUsed, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		n.LastUsed = &t
	}
	return n, nil
}
