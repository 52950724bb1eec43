package main

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KirkDiggler/rpg-sheet/internal/clients/document"
	"github.com/KirkDiggler/rpg-sheet/internal/config"
	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/events"
	"github.com/KirkDiggler/rpg-sheet/internal/orchestrators/tracker"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-sheet/internal/redis"
	sessionstate "github.com/KirkDiggler/rpg-sheet/internal/repositories/session_state"
	"github.com/KirkDiggler/rpg-sheet/internal/services/persistence"
)

const redisPingTimeout = 5 * time.Second

// app is one wired-up tracker session
type app struct {
	doc     *sheet.Document
	repo    sessionstate.Repository
	bus     *events.Bus
	tracker tracker.Service
}

// bootstrap opens the store and loads the session before building the tracker
func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	clk := clock.New()

	repo, err := openStore(ctx, cfg, clk)
	if err != nil {
		return nil, err
	}

	docClient, err := document.New(&document.Config{Path: cfg.Document})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	doc, stored, err := loadSession(ctx, docClient, repo, cfg.Key)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	saver, err := persistence.NewSaver(&persistence.Config{
		Repository: repo,
		Key:        cfg.Key,
		Delay:      cfg.Debounce,
	})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	bus := events.NewBus(nil)
	svc, err := tracker.NewOrchestrator(ctx, &tracker.Config{
		Document:   doc,
		Repository: repo,
		Saver:      saver,
		Notifier:   bus,
		Clock:      clk,
		Key:        cfg.Key,
		Preloaded:  true,
		Snapshot:   stored,
	})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	slog.DebugContext(ctx, "Session ready",
		"character", doc.Name,
		"store", cfg.Store,
		"key", cfg.Key)

	return &app{
		doc:     doc,
		repo:    repo,
		bus:     bus,
		tracker: svc,
	}, nil
}

// Close writes any pending state and releases the store
func (a *app) Close(ctx context.Context) error {
	flushErr := a.tracker.Close(ctx)
	if err := a.bus.Close(); err != nil {
		slog.WarnContext(ctx, "Failed to close event bus", "error", err)
	}
	if err := a.repo.Close(); err != nil {
		slog.WarnContext(ctx, "Failed to close session state store", "error", err)
	}
	return flushErr
}

// loadSession reads the document and the stored snapshot concurrently. A
// missing or unreadable snapshot yields a nil state, not an error.
func loadSession(ctx context.Context, docs document.Client, repo sessionstate.Repository, key string) (*sheet.Document, *sheet.SessionState, error) {
	var doc *sheet.Document
	var stored *sheet.SessionState

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = docs.Load(gctx)
		return err
	})
	g.Go(func() error {
		stored = tracker.LoadSnapshot(gctx, repo, key)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return doc, stored, nil
}

func openStore(ctx context.Context, cfg *config.Config, clk clock.Clock) (sessionstate.Repository, error) {
	switch cfg.Store {
	case config.StoreFile:
		return sessionstate.NewFileRepository(&sessionstate.FileConfig{
			Dir:   cfg.StateDir,
			Clock: clk,
		})

	case config.StoreRedis:
		client, err := redis.NewClient(cfg.Redis.Addr, &redis.Options{
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid redis settings")
		}

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := redis.Ping(pingCtx, client); err != nil {
			_ = client.Close()
			return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "redis at %s is unreachable", cfg.Redis.Addr)
		}

		return sessionstate.NewRedisRepository(&sessionstate.RedisConfig{
			Client: client,
			Clock:  clk,
		})

	case config.StoreSQLite:
		return sessionstate.NewSQLiteRepository(ctx, &sessionstate.SQLiteConfig{
			Path:  cfg.SQLite.Path,
			Clock: clk,
		})

	case config.StoreMemory:
		return sessionstate.NewInMemory(clk), nil

	default:
		return nil, errors.InvalidArgumentf("unknown store %q", cfg.Store)
	}
}

// runWithApp bootstraps a session, runs fn and always closes the session
func runWithApp(ctx context.Context, opts *options, fn func(ctx context.Context, a *app) error) error {
	a, err := bootstrap(ctx, opts.cfg)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)

	// flush even if the command was interrupted
	closeErr := a.Close(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	return closeErr
}
