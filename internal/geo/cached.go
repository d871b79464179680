package geo

import (
	"context"
	"errors"

	"github.com/darkodi/whatsapp-redirect/internal/cache"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// LocationCache is satisfied by cache.RedisCache
type LocationCache interface {
	GetLocation(ctx context.Context, ip string) (*model.Location, error)
	SetLocation(ctx context.Context, ip string, loc model.Location) error
}

// CachedLocator answers from the cache before asking next.
// Cache errors are logged and otherwise ignored.
type CachedLocator struct {
	next  Locator
	cache LocationCache
	log   *logger.Logger
}

func NewCachedLocator(next Locator, c LocationCache, log *logger.Logger) *CachedLocator {
	return &CachedLocator{next: next, cache: c, log: log}
}

func (l *CachedLocator) Locate(ctx context.Context, ip string) (model.Location, error) {
	if !Eligible(ip) {
		return model.Location{}, ErrSkipped
	}

	loc, err := l.cache.GetLocation(ctx, ip)
	if err == nil {
		geoCacheTotal.WithLabelValues("hit").Inc()
		return *loc, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.log.Warn("geo cache read failed", "ip", ip, "error", err)
	}
	geoCacheTotal.WithLabelValues("miss").Inc()

	resolved, err := l.next.Locate(ctx, ip)
	if err != nil {
		return model.Location{}, err
	}

	if err := l.cache.SetLocation(ctx, ip, resolved); err != nil {
		l.log.Warn("geo cache write failed", "ip", ip, "error", err)
	}
	return resolved, nil
}
