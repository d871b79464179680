package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// LocationPatcher writes a location onto a redirect log row
type LocationPatcher interface {
	PatchLocation(ctx context.Context, logID int64, loc model.Location) error
}

// EnricherConfig holds worker settings
type EnricherConfig struct {
	Workers      int
	Timeout      time.Duration // per lookup
	WriteTimeout time.Duration // per patch
}

// Enricher consumes geolocation jobs with a pool of workers.
// Every failure is logged and dropped.
type Enricher struct {
	queue   Queue
	locator Locator
	patcher LocationPatcher
	cfg     EnricherConfig
	log     *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewEnricher(queue Queue, locator Locator, patcher LocationPatcher, cfg EnricherConfig, log *logger.Logger) *Enricher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Enricher{
		queue:   queue,
		locator: locator,
		patcher: patcher,
		cfg:     cfg,
		log:     log,
	}
}

// Dispatch queues a lookup without blocking. Ineligible addresses are skipped
// silently; a full or unreachable queue is reported to the caller.
func (e *Enricher) Dispatch(ctx context.Context, logID int64, ip string) error {
	if !Eligible(ip) {
		geoJobsTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if err := e.queue.Push(ctx, Job{LogID: logID, IP: ip}); err != nil {
		geoJobsTotal.WithLabelValues("dropped").Inc()
		return err
	}
	geoJobsTotal.WithLabelValues("queued").Inc()
	return nil
}

// Start launches the workers. They run until Stop or until ctx is done.
func (e *Enricher) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.running = true
	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
	e.log.Info("geolocation workers started", "workers", e.cfg.Workers)
}

// Stop cancels the workers and waits for them to return
func (e *Enricher) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
	e.log.Info("geolocation workers stopped")
}

func (e *Enricher) worker(ctx context.Context, id int) {
	defer e.wg.Done()

	for {
		job, err := e.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.Warn("geolocation queue read failed", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		e.Process(ctx, job)
	}
}

// Process resolves and stores one job
func (e *Enricher) Process(ctx context.Context, job Job) {
	lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	loc, err := e.locator.Locate(lookupCtx, job.IP)
	cancel()
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			geoJobsTotal.WithLabelValues("skipped").Inc()
			return
		}
		geoJobsTotal.WithLabelValues("lookup_failed").Inc()
		e.log.Debug("geolocation lookup failed", "log_id", job.LogID, "ip", job.IP, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.WriteTimeout)
	defer cancel()
	if err := e.patcher.PatchLocation(writeCtx, job.LogID, loc); err != nil {
		geoJobsTotal.WithLabelValues("patch_failed").Inc()
		e.log.Warn("geolocation patch failed", "log_id", job.LogID, "error", err)
		return
	}

	geoJobsTotal.WithLabelValues("resolved").Inc()
	e.log.Debug("geolocation stored", "log_id", job.LogID, "city", loc.City, "country", loc.Country)
}
