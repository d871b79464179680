// Command admin manages owners' numbers and links from the shell.
//
//	admin add-number -owner 1 -phone 5541999887766 -desc "front desk"
//	admin add-link -owner 1 -name promo -message "Olá!"
//	admin link-active -id 3 -active=false
//	admin number-active -id 2 -active=false
//	admin delete-number -id 2
//	admin list -owner 1
//	admin stats -owner 1 -limit 20
//	admin schema [-down]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/darkodi/whatsapp-redirect/internal/cache"
	"github.com/darkodi/whatsapp-redirect/internal/config"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/migrations"
	"github.com/darkodi/whatsapp-redirect/internal/repository"
	"github.com/darkodi/whatsapp-redirect/internal/service"
	"github.com/darkodi/whatsapp-redirect/internal/validator"
)

type app struct {
	cfg   *config.Config
	db    *repository.DB
	admin *service.AdminService
	stats *service.StatsService
	log   *logger.Logger
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load configuration:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx := context.Background()

	a, cleanup, err := setup(ctx, cfg, log)
	if err != nil {
		log.Error("setup failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanup()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cleanup()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <add-number|add-link|link-active|number-active|delete-number|list|stats|schema> [flags]")
}

func setup(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, func(), error) {
	db, err := repository.Open(ctx, &cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{db.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	// Without Redis there is nothing to invalidate
	var invalidator service.LinkInvalidator
	if cfg.Redis.Enabled() {
		redisCache, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, redisCache.Close)
		invalidator = redisCache
	}

	v := validator.NewLinkValidator().WithCountryCode(cfg.Redirect.CountryCode)
	return &app{
		cfg:   cfg,
		db:    db,
		admin: service.NewAdminService(repository.NewLinkRepository(db), repository.NewNumberRepository(db), v, invalidator, log),
		stats: service.NewStatsService(repository.NewStatsRepository(db), log),
		log:   log,
	}, cleanup, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	owner := fs.Int64("owner", 0, "owner id")
	id := fs.Int64("id", 0, "link or number id")
	active := fs.Bool("active", true, "active flag")
	phone := fs.String("phone", "", "WhatsApp number, digits with or without country code")
	desc := fs.String("desc", "", "number description")
	name := fs.String("name", "", "link name")
	message := fs.String("message", "", "pre-filled message, empty for the default greeting")
	limit := fs.Int("limit", 10, "list length for stats")
	down := fs.Bool("down", false, "roll back one schema version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "add-number":
		n, err := a.admin.AddNumber(ctx, *owner, *phone, *desc)
		if err != nil {
			return err
		}
		return printJSON(n)

	case "add-link":
		l, err := a.admin.AddLink(ctx, *owner, *name, *message)
		if err != nil {
			return err
		}
		return printJSON(l)

	case "link-active":
		return a.admin.SetLinkActive(ctx, *id, *active)

	case "number-active":
		return a.admin.SetNumberActive(ctx, *id, *active)

	case "delete-number":
		return a.admin.DeleteNumber(ctx, *id)

	case "list":
		numbers, err := a.admin.ListNumbers(ctx, *owner)
		if err != nil {
			return err
		}
		links, err := a.admin.ListLinks(ctx, *owner)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"numbers": numbers, "links": links})

	case "stats":
		stats, err := a.stats.OwnerStats(ctx, *owner, *limit)
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "schema":
		return a.schema(*down)

	default:
		usage()
		return errors.New("unknown command " + cmd)
	}
}

// schema prints the schema version, rolling back one step first with down
func (a *app) schema(down bool) error {
	m, err := migrations.New(a.db.DB, a.db.Driver(), a.cfg.Database.DSN, a.log.Logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if down {
		if err := m.Down(); err != nil {
			return err
		}
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"version": version, "dirty": dirty})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
