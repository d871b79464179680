package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/darkodi/whatsapp-redirect/internal/balancer"
	"github.com/darkodi/whatsapp-redirect/internal/cache"
	"github.com/darkodi/whatsapp-redirect/internal/config"
	"github.com/darkodi/whatsapp-redirect/internal/geo"
	"github.com/darkodi/whatsapp-redirect/internal/handler"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/middleware"
	"github.com/darkodi/whatsapp-redirect/internal/repository"
	"github.com/darkodi/whatsapp-redirect/internal/service"
	"github.com/darkodi/whatsapp-redirect/internal/validator"
)

func main() {
	// ============================================================
	// LOAD CONFIGURATION
	// ============================================================
	fmt.Println("📋 Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if cfg.IsDevelopment() {
		fmt.Printf("   Environment: %s\n", cfg.App.Environment)
		fmt.Printf("   Port: %s\n", cfg.Server.Port)
		fmt.Printf("   Database: %s\n", cfg.Database.Driver)
		fmt.Printf("   Base URL: %s\n", cfg.App.BaseURL)
	}

	// ============================================================
	// INITIALIZE LOGGER
	// ============================================================
	log := logger.New(cfg.Log)

	log.Info("starting whatsapp-redirect",
		"level", cfg.Log.Level,
		"format", cfg.Log.Format,
		"environment", cfg.App.Environment)

	// Cancelled on return; stops background workers
	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	// ============================================================
	// INITIALIZE DATABASE
	// ============================================================
	db, err := repository.Open(ctx, &cfg.Database, log)
	if err != nil {
		log.Error("failed to initialize database", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err.Error())
		}
	}()

	links := repository.NewLinkRepository(db)
	numbers := repository.NewNumberRepository(db)
	logs := repository.NewRedirectLogRepository(db)

	healthChecks := map[string]handler.Pinger{"database": db}

	// ============================================================
	// INITIALIZE REDIS CACHE (optional)
	// ============================================================
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled() {
		log.Info("connecting to Redis...", "addr", cfg.Redis.Addr)
		redisCache, err = cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Error("failed to connect to Redis", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Error("failed to close Redis client", "error", err.Error())
			}
		}()
		healthChecks["redis"] = handler.PingFunc(redisCache.Ping)
		log.Info("Redis connected")
	}

	// ============================================================
	// INITIALIZE SERVICES
	// ============================================================
	selector := balancer.New(logs, balancer.Config{
		Window:         cfg.Balancer.Window,
		ExplorationCap: cfg.Balancer.ExplorationCap,
		LinkWeight:     cfg.Balancer.LinkWeight,
		JitterMin:      cfg.Balancer.JitterMin,
		JitterMax:      cfg.Balancer.JitterMax,
	})

	var opts []service.RedirectOption
	if redisCache != nil && redisCache.LinkCachingEnabled() {
		opts = append(opts, service.WithLinkCache(redisCache))
	}

	if cfg.Geo.Enabled {
		enricher := newEnricher(cfg, redisCache, logs, log)
		enricher.Start(ctx)
		defer enricher.Stop()
		opts = append(opts, service.WithGeoDispatcher(enricher))
	}

	redirectSvc := service.NewRedirectService(links, numbers, logs, selector, service.RedirectConfig{
		CountryCode:    cfg.Redirect.CountryCode,
		DefaultMessage: cfg.Redirect.DefaultMessage,
		WriteTimeout:   cfg.Redirect.WriteTimeout,
	}, log, opts...)

	// ============================================================
	// SET UP HTTP HANDLERS
	// ============================================================
	var statsHandler *handler.StatsHandler
	if cfg.Admin.Token != "" {
		statsSvc := service.NewStatsService(repository.NewStatsRepository(db), log)
		statsHandler = handler.NewStatsHandler(statsSvc, cfg.Admin.Token, log)
	}

	router := handler.SetupRoutes(
		handler.NewRedirectHandler(redirectSvc, validator.NewLinkValidator().WithCountryCode(cfg.Redirect.CountryCode), log),
		handler.NewHealthHandler(healthChecks, log),
		statsHandler,
	)

	// ============================================================
	// BUILD MIDDLEWARE CHAIN
	// ============================================================
	ipResolver, err := middleware.NewIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		log.Error("invalid trusted proxies", "error", err.Error())
		os.Exit(1)
	}

	middlewares := []middleware.Middleware{
		middleware.Recovery(log),
		middleware.RequestID,
		ipResolver.Middleware(),
		middleware.Logging(log),
	}
	// Add rate limiter if enabled
	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			middleware.RateLimiterConfig{
				Rate:     cfg.RateLimit.Rate,
				Burst:    cfg.RateLimit.Burst,
				Interval: cfg.RateLimit.Interval,
				Cleanup:  cfg.RateLimit.Cleanup,
			},
			log,
		)
		defer rateLimiter.Stop()
		middlewares = append(middlewares, rateLimiter.Middleware())
		log.Info("rate limiter enabled",
			"rate", cfg.RateLimit.Rate,
			"burst", cfg.RateLimit.Burst,
		)
	}
	// Metrics sits innermost so it sees the pattern the mux matched
	middlewares = append(middlewares, middleware.Metrics)

	wrappedRouter := middleware.Chain(router, middlewares...)

	// ============================================================
	// CREATE SERVER WITH CONFIG TIMEOUTS
	// ============================================================
	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      wrappedRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel to track server errors
	serverErr := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		if cfg.IsDevelopment() {
			fmt.Printf("🚀 Server starting on http://localhost%s\n", addr)
			fmt.Println("───────────────────────────────────────")
			fmt.Println("Endpoints:")
			fmt.Println("  GET  /{link}                   - Redirect to WhatsApp")
			fmt.Println("  GET  /{owner}/{link}           - Redirect, scoped to one owner")
			if statsHandler != nil {
				fmt.Println("  GET  /api/owners/{id}/stats    - Owner statistics")
			}
			fmt.Println("  GET  /health                   - Health check")
			fmt.Println("  GET  /metrics                  - Prometheus metrics")
			fmt.Println("───────────────────────────────────────")
			fmt.Println("Press Ctrl+C to shutdown gracefully")
		}
		log.Info("server starting", "addr", "http://localhost"+addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ============================================================
	// WAIT FOR SHUTDOWN OR ERROR
	// ============================================================
	select {
	case err := <-serverErr:
		log.Error("server error", "error", err.Error())
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	// Create context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		// force close if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Error("forced shutdown failed", "error", err.Error())
		}
	}

	log.Info("server stopped")
}

// newEnricher wires the geolocation pipeline: providers, optional cache and queue
func newEnricher(cfg *config.Config, redisCache *cache.RedisCache, patcher geo.LocationPatcher, log *logger.Logger) *geo.Enricher {
	chain := geo.Chain{geo.NewIPAPIClient(cfg.Geo.ProviderURL, cfg.Geo.Timeout)}
	if cfg.Geo.FallbackURL != "" {
		chain = append(chain, geo.NewIPInfoClient(cfg.Geo.FallbackURL, cfg.Geo.Timeout))
	}

	var locator geo.Locator = chain
	if redisCache != nil {
		locator = geo.NewCachedLocator(chain, redisCache, log)
	}

	var queue geo.Queue
	if cfg.Geo.Queue == "redis" {
		queue = geo.NewRedisQueue(redisCache.Client(), redisCache.Key(cfg.Geo.QueueKey), cfg.Geo.QueueSize)
	} else {
		queue = geo.NewMemoryQueue(cfg.Geo.QueueSize)
	}

	return geo.NewEnricher(queue, locator, patcher, geo.EnricherConfig{
		Workers:      cfg.Geo.Workers,
		Timeout:      cfg.Geo.Timeout,
		WriteTimeout: cfg.Redirect.WriteTimeout,
	}, log)
}
