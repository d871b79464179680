//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/darkodi/whatsapp-redirect/internal/config"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
)

func setupPostgres(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("redirect"),
		tcpostgres.WithUsername("redirect"),
		tcpostgres.WithPassword("redirect"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, &config.DatabaseConfig{
		Driver:       "postgres",
		DSN:          dsn,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgres_RedirectBookkeeping(t *testing.T) {
	ctx := context.Background()
	db := setupPostgres(t)
	assert.Equal(t, "postgres", db.Driver())

	links := NewLinkRepository(db)
	numbers := NewNumberRepository(db)
	logs := NewRedirectLogRepository(db)
	stats := NewStatsRepository(db)

	link := &model.CustomLink{OwnerID: 7, Name: "promo", IsActive: true}
	require.NoError(t, links.Create(ctx, link))
	assert.ErrorIs(t, links.Create(ctx, &model.CustomLink{OwnerID: 7, Name: "promo"}), ErrDuplicate)

	n := &model.PhoneNumber{OwnerID: 7, Phone: "5541999990001", IsActive: true}
	require.NoError(t, numbers.Create(ctx, n))

	got, err := links.FindActiveLink(ctx, model.LinkKey{Name: "promo"})
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)

	now := time.Now().UTC()
	require.NoError(t, links.IncrementClickCount(ctx, link.ID))
	require.NoError(t, numbers.IncrementRedirectCount(ctx, n.ID, now))
	logID, err := logs.Insert(ctx, &model.RedirectLogEntry{LinkID: link.ID, NumberID: n.ID, CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, logs.PatchLocation(ctx, logID, model.Location{City: "Curitiba", Country: "Brazil", Latitude: -25.4, Longitude: -49.3}))

	usage, err := logs.RecentUsage(ctx, []int64{n.ID}, link.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.RecentUsage{Total: 1, ForLink: 1}, usage[n.ID])

	totals, err := stats.Totals(ctx, 7, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Redirects)
	assert.Equal(t, int64(1), totals.RedirectsSince)

	points, err := stats.Locations(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Curitiba", points[0].City)
}
