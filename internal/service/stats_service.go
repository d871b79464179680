package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
	"github.com/darkodi/whatsapp-redirect/internal/repository"
)

const (
	defaultStatsLimit = 10
	maxStatsLimit     = 100
)

// StatsReader is the read side used by StatsService
type StatsReader interface {
	Totals(ctx context.Context, ownerID int64, since time.Time) (repository.Totals, error)
	ByNumber(ctx context.Context, ownerID int64) ([]model.NumberStat, error)
	TopLinks(ctx context.Context, ownerID int64, limit int) ([]model.LinkStat, error)
	Recent(ctx context.Context, ownerID int64, limit int) ([]model.RecentRedirect, error)
	Locations(ctx context.Context, ownerID int64, limit int) ([]model.LocationPoint, error)
}

// StatsService builds the per-owner statistics view
type StatsService struct {
	stats StatsReader
	log   *logger.Logger
	now   func() time.Time
}

func NewStatsService(stats StatsReader, log *logger.Logger) *StatsService {
	return &StatsService{stats: stats, log: log, now: time.Now}
}

// OwnerStats aggregates everything known about an owner's traffic.
// limit bounds the link, activity and location lists; 0 picks the default.
func (s *StatsService) OwnerStats(ctx context.Context, ownerID int64, limit int) (*model.OwnerStats, error) {
	switch {
	case limit <= 0:
		limit = defaultStatsLimit
	case limit > maxStatsLimit:
		limit = maxStatsLimit
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	totals, err := s.stats.Totals(ctx, ownerID, today)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	byNumber, err := s.stats.ByNumber(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("per-number breakdown: %w", err)
	}
	links, err := s.stats.TopLinks(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}
	recent, err := s.stats.Recent(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	locations, err := s.stats.Locations(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}

	for i := range byNumber {
		byNumber[i].ShareOfTotals = ratio(byNumber[i].Redirects, totals.Redirects)
	}
	for i := range links {
		links[i].ConversionRate = math.Round(ratio(links[i].Redirects, links[i].Clicks)*10000) / 100
	}

	if totals.OrphanedRedirects > 0 {
		s.log.FromContext(ctx).Debug("orphaned redirect rows excluded from per-number stats",
			"owner_id", ownerID, "rows", totals.OrphanedRedirects)
	}

	return &model.OwnerStats{
		OwnerID:           ownerID,
		TotalLinks:        totals.Links,
		ActiveNumbers:     totals.ActiveNumbers,
		TotalRedirects:    totals.Redirects,
		RedirectsToday:    totals.RedirectsSince,
		OrphanedRedirects: totals.OrphanedRedirects,
		ByNumber:          byNumber,
		Links:             links,
		Recent:            recent,
		Locations:         locations,
		GeneratedAt:       now,
	}, nil
}

func ratio(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
