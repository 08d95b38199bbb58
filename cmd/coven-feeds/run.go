// ABOUTME: The run and once commands: wire config, storage, Matrix and the relay
// ABOUTME: Also opens the storage backends shared with the cache inspection commands

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/2389/coven-feeds/internal/config"
	"github.com/2389/coven-feeds/internal/feed"
	"github.com/2389/coven-feeds/internal/matrix"
	"github.com/2389/coven-feeds/internal/metrics"
	"github.com/2389/coven-feeds/internal/relay"
	"github.com/2389/coven-feeds/internal/store"
	"github.com/2389/coven-feeds/internal/urlcache"
)

func loadConfig(c *cli.Context) (*config.Config, string, error) {
	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	return cfg, configPath, nil
}

// resolvePath anchors relative storage paths in the data directory.
func resolvePath(dataPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataPath, p)
}

// backends holds the opened cache storage and optional delivery ledger.
type backends struct {
	storage urlcache.Storage
	ledger  store.Store // nil when no ledger is configured
	path    string
}

func (b *backends) Close() error {
	if b.ledger != nil {
		return b.ledger.Close()
	}
	return nil
}

// openBackends opens the configured cache storage. The file backend's
// directory is created here so that saving never has to.
func openBackends(cfg config.StorageConfig, dataPath string) (*backends, error) {
	path := resolvePath(dataPath, cfg.Path)

	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return &backends{storage: s, ledger: s, path: path}, nil

	case config.BackendFile, "":
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		b := &backends{storage: urlcache.NewFileStorage(path), path: path}
		if cfg.LedgerPath != "" {
			ledger, err := store.NewSQLiteStore(resolvePath(dataPath, cfg.LedgerPath))
			if err != nil {
				return nil, fmt.Errorf("opening delivery ledger: %w", err)
			}
			b.ledger = ledger
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func printStartup(w io.Writer, configPath string, cfg *config.Config, storagePath string) {
	green := color.New(color.FgGreen)
	line := func(label, value string) {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "%-11s %s\n", label+":", value)
	}

	line("Config", configPath)
	line("Feeds", fmt.Sprintf("%d", len(cfg.Feeds)))
	line("Storage", fmt.Sprintf("%s (%s)", storagePath, cfg.Storage.Backend))
	if cfg.General.DryRun {
		line("Matrix", "dry run")
	} else {
		line("Homeserver", cfg.Matrix.Homeserver)
		if cfg.Matrix.RecoveryKey != "" {
			line("Encryption", "enabled")
		}
	}
	if cfg.Metrics.Enabled {
		line("Metrics", "http://"+cfg.Metrics.Addr+cfg.Metrics.Path)
	}
	fmt.Fprintln(w)
}

func runRelay(c *cli.Context, loop bool) error {
	ctx := c.Context

	cfg, configPath, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		cfg.General.DryRun = true
	}

	dataPath := getDataPath()
	logger := setupLogger(cfg.Logging, os.Stdout)

	b, err := openBackends(cfg.Storage, dataPath)
	if err != nil {
		return err
	}
	defer b.Close()

	if loop {
		color.New(color.FgCyan).Print(banner)
		printStartup(os.Stdout, configPath, cfg, b.path)
	}

	deliverer, closeDeliverer, err := newDeliverer(ctx, cfg, dataPath, logger)
	if err != nil {
		return err
	}
	defer closeDeliverer()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	relayCfg := relay.Config{
		Fetcher:   feed.NewHTTPFetcher(cfg.General.FetchTimeout, cfg.General.UserAgent),
		Deliverer: deliverer,
		Storage:   b.storage,
		Metrics:   m,
		Logger:    logger,
		OwnerRoom: cfg.General.OwnerID,
	}
	if b.ledger != nil {
		relayCfg.Ledger = b.ledger
	}
	r, err := relay.New(relayCfg)
	if err != nil {
		return err
	}

	if loop {
		logger.Info("starting relay", "feeds", len(cfg.Feeds), "interval", cfg.General.Interval)
		return r.Run(ctx, cfg.Feeds, cfg.General.Interval)
	}

	results := r.RunOnce(ctx, cfg.Feeds)
	if err := relay.Errors(results); err != nil {
		return fmt.Errorf("feed cycles failed: %w", err)
	}
	return nil
}

func newDeliverer(ctx context.Context, cfg *config.Config, dataPath string, logger *slog.Logger) (relay.Deliverer, func(), error) {
	if cfg.General.DryRun {
		return matrix.NewLogDeliverer(logger), func() {}, nil
	}

	d, err := matrix.New(ctx, cfg.Matrix, dataPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to matrix: %w", err)
	}
	return d, func() {
		if err := d.Close(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("closing matrix client", "error", err)
		}
	}, nil
}
