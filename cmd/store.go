package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/api"
	"github.com/sells-group/h2-custody/internal/resilience"
	"github.com/sells-group/h2-custody/internal/store"
)

// initStore opens the store selected by --fixture or the config. SQL stores
// are migrated and wrapped with retries.
func initStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	if fixturePath != "" {
		m, err := store.LoadFixture(fixturePath)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("store: loaded fixture", zap.String("path", fixturePath))
		return m, nil
	}

	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemStore(), nil
	case "sqlite":
		s, err = store.NewSQLite(cfg.Store.DatabaseURL)
		if err == nil && mode != "migrate" {
			err = s.Migrate(ctx)
		}
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store.NewRetryingStore(s, cfg.Store.Driver, resilience.FromConfig(cfg.Retry)), nil
}

// initServices opens the store and wires the services on top of it.
func initServices(ctx context.Context, mode string) (*api.Services, store.Store, error) {
	s, err := initStore(ctx, mode)
	if err != nil {
		return nil, nil, err
	}
	return api.NewServices(s, cfg), s, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
