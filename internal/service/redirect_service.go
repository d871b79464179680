package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/balancer"
	"github.com/darkodi/whatsapp-redirect/internal/cache"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
	"github.com/darkodi/whatsapp-redirect/internal/repository"
	"github.com/darkodi/whatsapp-redirect/internal/whatsapp"
)

// Custom errors for the service layer
var (
	ErrLinkNotFound       = errors.New("link not found or inactive")
	ErrNoNumbersAvailable = errors.New("no active numbers available for link")
)

// LinkStore resolves links and counts clicks
type LinkStore interface {
	FindActiveLink(ctx context.Context, key model.LinkKey) (*model.CustomLink, error)
	IncrementClickCount(ctx context.Context, linkID int64) error
}

// NumberStore loads an owner's numbers and counts redirects per number
type NumberStore interface {
	FindActiveByOwner(ctx context.Context, ownerID int64) ([]model.PhoneNumber, error)
	IncrementRedirectCount(ctx context.Context, numberID int64, at time.Time) error
}

// LogStore appends redirect log rows
type LogStore interface {
	Insert(ctx context.Context, entry *model.RedirectLogEntry) (int64, error)
}

// LinkCache is an optional read-through cache for link resolution
type LinkCache interface {
	GetLink(ctx context.Context, key model.LinkKey) (*model.CustomLink, error)
	SetLink(ctx context.Context, key model.LinkKey, link *model.CustomLink) error
}

// GeoDispatcher queues a geolocation lookup for a log row without blocking
type GeoDispatcher interface {
	Dispatch(ctx context.Context, logID int64, ip string) error
}

// RedirectConfig holds the settings used to build targets and bound writes
type RedirectConfig struct {
	CountryCode    string
	DefaultMessage string
	WriteTimeout   time.Duration
}

// RedirectService turns a link visit into a WhatsApp URL
type RedirectService struct {
	links    LinkStore
	numbers  NumberStore
	logs     LogStore
	selector balancer.Selector
	cfg      RedirectConfig
	log      *logger.Logger

	cache LinkCache
	geo   GeoDispatcher
	now   func() time.Time
}

// RedirectOption configures optional collaborators
type RedirectOption func(*RedirectService)

func WithLinkCache(c LinkCache) RedirectOption {
	return func(s *RedirectService) { s.cache = c }
}

func WithGeoDispatcher(g GeoDispatcher) RedirectOption {
	return func(s *RedirectService) { s.geo = g }
}

func WithClock(now func() time.Time) RedirectOption {
	return func(s *RedirectService) { s.now = now }
}

// NewRedirectService creates a new service instance
func NewRedirectService(
	links LinkStore,
	numbers NumberStore,
	logs LogStore,
	selector balancer.Selector,
	cfg RedirectConfig,
	log *logger.Logger,
	opts ...RedirectOption,
) *RedirectService {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	s := &RedirectService{
		links:    links,
		numbers:  numbers,
		logs:     logs,
		selector: selector,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleRedirect resolves req to a WhatsApp URL.
//
// Only ErrLinkNotFound and ErrNoNumbersAvailable (or a failed read needed to
// pick a number) are returned. Failed counter, log, cache and geolocation
// writes are reported in RedirectResult.Warnings and never abort the redirect.
// Writes run detached from ctx so a client disconnect does not undo them.
func (s *RedirectService) HandleRedirect(ctx context.Context, req model.RedirectRequest) (*model.RedirectResult, error) {
	start := time.Now()
	defer func() { redirectDuration.Observe(time.Since(start).Seconds()) }()

	log := s.log.FromContext(ctx).With("link", req.Key.String())
	result := &model.RedirectResult{}

	// ============ STEP 1: Resolve link ============
	link, err := s.resolveLink(ctx, req.Key, result)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			redirectsTotal.WithLabelValues("link_not_found").Inc()
		} else {
			redirectsTotal.WithLabelValues("error").Inc()
		}
		s.report(log, result)
		return nil, err
	}

	// ============ STEP 2: Count the click ============
	if err := s.write(ctx, func(ctx context.Context) error {
		return s.links.IncrementClickCount(ctx, link.ID)
	}); err != nil {
		s.warn(result, model.WarningBookkeeping, "increment_click_count", err)
	}

	// ============ STEP 3: Load active numbers ============
	numbers, err := s.numbers.FindActiveByOwner(ctx, link.OwnerID)
	if err != nil {
		redirectsTotal.WithLabelValues("error").Inc()
		s.report(log, result)
		return nil, fmt.Errorf("load numbers of owner %d: %w", link.OwnerID, err)
	}
	if len(numbers) == 0 {
		redirectsTotal.WithLabelValues("no_numbers").Inc()
		s.report(log, result)
		return nil, ErrNoNumbersAvailable
	}

	// ============ STEP 4: Select number ============
	sel, err := s.selector.Select(ctx, numbers, link.ID)
	if err != nil {
		redirectsTotal.WithLabelValues("error").Inc()
		s.report(log, result)
		return nil, fmt.Errorf("select number: %w", err)
	}
	balancerSelectionsTotal.WithLabelValues(string(sel.Strategy)).Inc()
	if sel.Fallback != nil {
		s.warn(result, model.WarningBalancer, "usage_statistics", sel.Fallback)
	}
	number := sel.Number
	at := s.now().UTC()

	// ============ STEP 5: Number bookkeeping ============
	if err := s.write(ctx, func(ctx context.Context) error {
		return s.numbers.IncrementRedirectCount(ctx, number.ID, at)
	}); err != nil {
		s.warn(result, model.WarningBookkeeping, "increment_redirect_count", err)
	}

	// ============ STEP 6: Log entry ============
	message := link.Message
	if message == "" {
		message = s.cfg.DefaultMessage
	}
	entry := &model.RedirectLogEntry{
		LinkID:    link.ID,
		NumberID:  number.ID,
		CreatedAt: at,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Message:   message,
	}
	var logID int64
	if err := s.write(ctx, func(ctx context.Context) error {
		var err error
		logID, err = s.logs.Insert(ctx, entry)
		return err
	}); err != nil {
		s.warn(result, model.WarningBookkeeping, "insert_redirect_log", err)
	}

	// ============ STEP 7: Geolocation, in the background ============
	if s.geo != nil && logID != 0 {
		if err := s.write(ctx, func(ctx context.Context) error {
			return s.geo.Dispatch(ctx, logID, req.IP)
		}); err != nil {
			s.warn(result, model.WarningGeolocation, "dispatch", err)
		}
	}

	// ============ STEP 8: Build target ============
	resolved := *link
	resolved.ClickCount = 0
	result.Target = model.RedirectTarget{
		URL:    whatsapp.BuildURL(number.Phone, message, s.cfg.CountryCode),
		Link:   resolved,
		Number: number,
		LogID:  logID,
	}

	redirectsTotal.WithLabelValues("ok").Inc()
	s.report(log, result)
	log.Info("redirect served",
		"link_id", link.ID,
		"number_id", number.ID,
		"strategy", sel.Strategy,
		"candidates", len(numbers),
		"log_id", logID,
		"duration", time.Since(start),
	)
	return result, nil
}

// resolveLink checks the cache, then the database
func (s *RedirectService) resolveLink(ctx context.Context, key model.LinkKey, result *model.RedirectResult) (*model.CustomLink, error) {
	if s.cache != nil {
		link, err := s.cache.GetLink(ctx, key)
		if err == nil && link.IsActive {
			return link, nil
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			s.warn(result, model.WarningCache, "get_link", err)
		}
	}

	link, err := s.links.FindActiveLink(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve link %s: %w", key, err)
	}

	if s.cache != nil {
		if err := s.cache.SetLink(ctx, key, link); err != nil {
			s.warn(result, model.WarningCache, "set_link", err)
		}
	}
	return link, nil
}

// write runs fn detached from the caller's cancellation, bounded by the write timeout
func (s *RedirectService) write(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *RedirectService) warn(result *model.RedirectResult, kind model.WarningKind, op string, err error) {
	result.Warnings = append(result.Warnings, model.Warning{Kind: kind, Op: op, Err: err})
	redirectWarningsTotal.WithLabelValues(string(kind), op).Inc()
}

func (s *RedirectService) report(log *logger.Logger, result *model.RedirectResult) {
	for _, w := range result.Warnings {
		log.Warn("redirect degraded", "kind", w.Kind, "op", w.Op, "error", w.Err)
	}
}
