package migrations

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestUpDown(t *testing.T) {
	db := openMemory(t)
	m, err := New(db, "sqlite3", ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer m.Close()

	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	for _, table := range []string{"whatsapp_numbers", "custom_links", "redirect_logs"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	// idempotent
	require.NoError(t, m.Up())

	require.NoError(t, m.Down())
	assert.False(t, tableExists(t, db, "redirect_logs"))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	// nothing left to roll back
	require.NoError(t, m.Down())
}

func TestUniqueLinkPerOwner(t *testing.T) {
	db := openMemory(t)
	m, err := New(db, "sqlite3", ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	insert := "INSERT INTO custom_links (owner_id, link_name, message, is_active, click_count, created_at) VALUES (?, ?, '', 1, 0, CURRENT_TIMESTAMP)"
	_, err = db.Exec(insert, 1, "promo")
	require.NoError(t, err)
	_, err = db.Exec(insert, 2, "promo")
	require.NoError(t, err)
	_, err = db.Exec(insert, 1, "promo")
	assert.Error(t, err)
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(nil, "mysql", "", slog.Default())
	assert.Error(t, err)
}
