// Package balancer picks which of an owner's WhatsApp numbers receives a redirect.
//
// Selection is stateless: every call reads recent usage from the redirect log
// and draws from an inverse-load distribution, with a small carve-out that lets
// numbers without any history receive traffic gradually.
package balancer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// ErrNoCandidates is returned for an empty input. Callers check for it first.
var ErrNoCandidates = errors.New("balancer: no candidate numbers")

// Strategy names the branch that produced a selection
type Strategy string

const (
	StrategySingle   Strategy = "single"
	StrategyExplore  Strategy = "explore"
	StrategyWeighted Strategy = "weighted"
	StrategyFallback Strategy = "fallback"
)

// UsageReader reads recent redirect counts for a set of numbers in one
// consistent read. Numbers missing from the result have no recent usage.
// Implemented by the redirect log repository.
type UsageReader interface {
	RecentUsage(ctx context.Context, numberIDs []int64, linkID int64, since time.Time) (map[int64]model.RecentUsage, error)
}

// Selector chooses one number out of a non-empty list
type Selector interface {
	Select(ctx context.Context, numbers []model.PhoneNumber, linkID int64) (Selection, error)
}

// Selection is the outcome of one Select call.
// Fallback is set when usage statistics could not be read.
type Selection struct {
	Number   model.PhoneNumber
	Strategy Strategy
	Fallback error
}

// Random is the source of randomness. It must be safe for concurrent use
// when the Balancer is shared between goroutines.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Config holds the tuning knobs
type Config struct {
	Window         time.Duration // trailing window for recent usage
	ExplorationCap float64       // upper bound on the fresh-number probability
	LinkWeight     float64       // multiplier for redirects of the same link
	JitterMin      float64       // idle numbers get a load in [JitterMin, JitterMax)
	JitterMax      float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Window:         24 * time.Hour,
		ExplorationCap: 0.3,
		LinkWeight:     2,
		JitterMin:      0.1,
		JitterMax:      0.6,
	}
}

// Balancer is the default Selector
type Balancer struct {
	usage UsageReader
	cfg   Config
	rnd   Random
	now   func() time.Time
}

// Option configures a Balancer
type Option func(*Balancer)

// WithRand replaces the random source
func WithRand(r Random) Option {
	return func(b *Balancer) { b.rnd = r }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Balancer) { b.now = now }
}

// New creates a Balancer reading usage from usage
func New(usage UsageReader, cfg Config, opts ...Option) *Balancer {
	b := &Balancer{
		usage: usage,
		cfg:   cfg,
		rnd:   globalRand{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Select returns exactly one element of numbers. It never fails for a
// non-empty input: statistics errors degrade to a uniform draw.
func (b *Balancer) Select(ctx context.Context, numbers []model.PhoneNumber, linkID int64) (Selection, error) {
	switch len(numbers) {
	case 0:
		return Selection{}, ErrNoCandidates
	case 1:
		return Selection{Number: numbers[0], Strategy: StrategySingle}, nil
	}

	// ============ Cold start ============
	fresh, seasoned := partition(numbers)
	candidates := numbers
	if len(fresh) > 0 && len(seasoned) > 0 {
		if b.rnd.Float64() < b.explorationProbability(len(fresh)) {
			return Selection{Number: fresh[b.rnd.IntN(len(fresh))], Strategy: StrategyExplore}, nil
		}
		candidates = seasoned
	}
	if len(candidates) == 1 {
		return Selection{Number: candidates[0], Strategy: StrategyWeighted}, nil
	}

	// ============ Inverse recent load ============
	loads, err := b.loads(ctx, candidates, linkID)
	if err != nil {
		return Selection{
			Number:   numbers[b.rnd.IntN(len(numbers))],
			Strategy: StrategyFallback,
			Fallback: err,
		}, nil
	}

	return Selection{Number: candidates[b.pick(loads)], Strategy: StrategyWeighted}, nil
}

func (b *Balancer) explorationProbability(freshCount int) float64 {
	return min(b.cfg.ExplorationCap, 1/float64(freshCount+1))
}

// loads returns the weighted recent load of each candidate
func (b *Balancer) loads(ctx context.Context, candidates []model.PhoneNumber, linkID int64) ([]float64, error) {
	ids := make([]int64, len(candidates))
	for i, n := range candidates {
		ids[i] = n.ID
	}

	usage, err := b.usage.RecentUsage(ctx, ids, linkID, b.now().Add(-b.cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("recent redirects for link %d: %w", linkID, err)
	}

	loads := make([]float64, len(candidates))
	for i, n := range candidates {
		u := usage[n.ID]
		if u.Total < 0 || u.ForLink < 0 || u.ForLink > u.Total {
			return nil, fmt.Errorf("malformed usage for number %d: total=%d link=%d", n.ID, u.Total, u.ForLink)
		}

		load := float64(u.Total) + b.cfg.LinkWeight*float64(u.ForLink)
		if load == 0 {
			load = b.cfg.JitterMin + b.rnd.Float64()*(b.cfg.JitterMax-b.cfg.JitterMin)
		}
		loads[i] = load
	}
	return loads, nil
}

// pick draws an index with probability proportional to (max(loads)+1) - load
func (b *Balancer) pick(loads []float64) int {
	maxLoad := loads[0]
	for _, l := range loads[1:] {
		maxLoad = max(maxLoad, l)
	}

	weights := make([]float64, len(loads))
	var total float64
	for i, l := range loads {
		weights[i] = maxLoad + 1 - l
		total += weights[i]
	}

	r := b.rnd.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

func partition(numbers []model.PhoneNumber) (fresh, seasoned []model.PhoneNumber) {
	for _, n := range numbers {
		if n.IsFresh() {
			fresh = append(fresh, n)
		} else {
			seasoned = append(seasoned, n)
		}
	}
	return fresh, seasoned
}

// globalRand uses the runtime-seeded, concurrency-safe top-level generator
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }
