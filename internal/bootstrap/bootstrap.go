// Package bootstrap assembles the engine from configuration for the
// command line tools and the daemon.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/quantumlife/focuscoach/internal/catalog"
	"github.com/quantumlife/focuscoach/internal/config"
	"github.com/quantumlife/focuscoach/internal/intervention"
	"github.com/quantumlife/focuscoach/internal/logging"
	"github.com/quantumlife/focuscoach/internal/metrics"
	"github.com/quantumlife/focuscoach/internal/storage"
	"github.com/quantumlife/focuscoach/internal/userstate"
)

// Engine is a ready to use decision service and the resources behind it.
type Engine struct {
	Service  *intervention.Service
	Store    userstate.Store
	Registry *prometheus.Registry // nil unless metrics were requested

	db *storage.DB
}

// Options tune what Open builds.
type Options struct {
	Metrics bool
}

// OpenStore opens the profile store named by the config. The database is
// nil for the memory driver; callers close it otherwise.
func OpenStore(ctx context.Context, cfg *config.Config) (userstate.Store, *storage.DB, error) {
	var (
		store userstate.Store
		db    *storage.DB
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store = userstate.NewMemoryStore()
	case config.DriverSQLite:
		var err error
		db, err = storage.Open(storage.Config{Path: cfg.DatabasePath()})
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		store = storage.NewProfileStore(db)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if ttl := cfg.Storage.CacheTTL; ttl > 0 {
		store = userstate.NewCachedStore(store, ttl, 2*ttl)
	}
	return store, db, nil
}

// Open validates the config and builds the engine.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	store, db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{Store: store, db: db}
	svcOpts := []intervention.Option{intervention.WithLogger(logging.WithField("component", "engine"))}
	if opts.Metrics {
		e.Registry = prometheus.NewRegistry()
		e.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		svcOpts = append(svcOpts, intervention.WithMetrics(metrics.MustNewMetrics(e.Registry)))
	}

	e.Service, err = intervention.NewService(store, cat, cfg.Policy, svcOpts...)
	if err != nil {
		e.Close()
		return nil, err
	}

	logging.WithFields(map[string]interface{}{
		"driver":    cfg.Storage.Driver,
		"templates": cat.Len(),
	}).Debug("engine ready")
	return e, nil
}

// Close releases the database.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// LoadConfig reads the config file, applies a data directory override and
// configures logging with console output to logOut.
func LoadConfig(path, dataDir string, logOut io.Writer) (*config.Config, error) {
	if path == "" && dataDir != "" {
		path = config.DefaultPath(dataDir)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Log.Output = logOut
	if err := logging.Configure(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDataDir creates the data directory.
func EnsureDataDir(cfg *config.Config) error {
	if cfg.DataDir == "" {
		return nil
	}
	return os.MkdirAll(cfg.DataDir, 0700)
}

// ShutdownContext bounds graceful shutdown.
func ShutdownContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
