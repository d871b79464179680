package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
	"github.com/darkodi/whatsapp-redirect/internal/repository"
)

type recordingInvalidator struct {
	keys []string
	err  error
}

func (r *recordingInvalidator) DeleteLink(_ context.Context, key model.LinkKey) error {
	r.keys = append(r.keys, key.String())
	return r.err
}

func (e *testEnv) admin(cache LinkInvalidator) *AdminService {
	return NewAdminService(e.links, e.numbers, nil, cache, logger.Nop())
}

func TestAdminAddNumber(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.admin(nil)
	ctx := context.Background()

	n, err := admin.AddNumber(ctx, 1, "(41) 99988-7766", "loja centro")
	require.NoError(t, err)
	assert.Equal(t, "5541999887766", n.Phone)
	assert.True(t, n.IsActive)
	assert.NotZero(t, n.ID)

	_, err = admin.AddNumber(ctx, 1, "5541999887766", "")
	assert.ErrorIs(t, err, ErrNumberExists)

	// same phone, different owner
	_, err = admin.AddNumber(ctx, 2, "5541999887766", "")
	assert.NoError(t, err)

	_, err = admin.AddNumber(ctx, 1, "123", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAdminAddLink(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.admin(nil)
	ctx := context.Background()

	link, err := admin.AddLink(ctx, 1, "promo", "Oi!")
	require.NoError(t, err)
	assert.True(t, link.IsActive)

	_, err = admin.AddLink(ctx, 1, "promo", "")
	assert.ErrorIs(t, err, ErrLinkExists)

	_, err = admin.AddLink(ctx, 2, "promo", "")
	assert.NoError(t, err)

	_, err = admin.AddLink(ctx, 1, "health", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	links, err := admin.ListLinks(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestAdminSetLinkActiveInvalidatesCache(t *testing.T) {
	env := setupTestEnv(t)
	cache := &recordingInvalidator{}
	admin := env.admin(cache)
	ctx := context.Background()

	link := env.link(t, 3, "promo", "", true)

	require.NoError(t, admin.SetLinkActive(ctx, link.ID, false))
	assert.Equal(t, []string{"promo", "3/promo"}, cache.keys)

	_, err := env.links.FindActiveLink(ctx, model.LinkKey{Name: "promo"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// a failing cache does not fail the update
	cache.err = errors.New("redis down")
	assert.NoError(t, admin.SetLinkActive(ctx, link.ID, true))

	assert.ErrorIs(t, admin.SetLinkActive(ctx, 999, true), repository.ErrNotFound)
}

func TestAdminKeepsLastActiveNumber(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.admin(nil)
	ctx := context.Background()

	first := env.number(t, 1, "5541900000001", 0, true)
	second := env.number(t, 1, "5541900000002", 0, true)

	require.NoError(t, admin.SetNumberActive(ctx, first.ID, false))
	assert.ErrorIs(t, admin.SetNumberActive(ctx, second.ID, false), ErrLastActiveNumber)
	assert.ErrorIs(t, admin.DeleteNumber(ctx, second.ID), ErrLastActiveNumber)

	// inactive numbers can always go
	require.NoError(t, admin.DeleteNumber(ctx, first.ID))

	numbers, err := admin.ListNumbers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, numbers, 1)
	assert.Equal(t, second.ID, numbers[0].ID)
}

func TestAdminDeleteLeavesOrphanedLogs(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.admin(nil)
	svc := env.service(t)
	ctx := context.Background()

	link := env.link(t, 1, "promo", "", true)
	only := env.number(t, 1, "5541900000001", 0, true)
	env.number(t, 1, "5541900000002", 5, false)

	_, err := svc.HandleRedirect(ctx, redirectTo("promo"))
	require.NoError(t, err)

	// activate the spare, then the original can go
	numbers, err := admin.ListNumbers(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, admin.SetNumberActive(ctx, numbers[1].ID, true))
	require.NoError(t, admin.DeleteNumber(ctx, only.ID))

	assert.Equal(t, int64(1), env.logRows(t, link.ID))
	_, err = env.numbers.GetByID(ctx, only.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
