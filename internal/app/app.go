package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dataguard/internal/config"
	"dataguard/internal/guardrail"
	"dataguard/internal/kv"
	"dataguard/internal/provenance"
	"dataguard/internal/tracker"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// services bundles the guardrail stack wired over one store.
type services struct {
	guardrails *guardrail.Service
	ledger     *tracker.Ledger
	engine     *provenance.Engine
}

// openStore builds the configured key-value backend. The returned closer may
// be nil for backends without resources to release.
func (a *App) openStore(ctx context.Context) (kv.Store, func(), error) {
	storage := a.Config.Storage
	switch storage.Backend {
	case config.BackendMemory:
		a.Logger.Warn().Msg("memory backend configured; guardrail state will not survive this process")
		return kv.NewMemory(), nil, nil
	case config.BackendRedis:
		store, err := kv.NewRedis(ctx, kv.RedisOptions{
			Addr:      storage.Redis.Addr,
			Password:  storage.Redis.Password,
			DB:        storage.Redis.DB,
			KeyPrefix: storage.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.BackendPostgres:
		store, err := kv.NewPostgres(ctx, kv.PostgresOptions{
			DSN:             storage.Database.DSN,
			MaxOpenConns:    storage.Database.MaxOpenConns,
			MinIdleConns:    storage.Database.MaxIdleConns,
			ConnMaxLifetime: storage.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := kv.NewFile(storage.File.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

// newServices wires the guardrail service, tracker ledger, and provenance
// engine over the configured store.
func (a *App) newServices(ctx context.Context) (*services, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage backend: %w", err)
	}

	guardrails := guardrail.NewService(store, a.Config.Guardrail.ConfigKey, a.Logger)
	ledger := tracker.NewLedger(store, guardrails, a.Logger)
	engine := provenance.NewEngine(guardrails, ledger, a.Logger)

	closer := func() {}
	if closeStore != nil {
		closer = closeStore
	}
	return &services{
		guardrails: guardrails,
		ledger:     ledger,
		engine:     engine,
	}, closer, nil
}
