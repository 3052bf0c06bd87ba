package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/opera"
	"github.com/aretw0/opera/internal/config"
	"github.com/aretw0/opera/internal/diagnostics"
	"github.com/aretw0/opera/internal/metrics"
	"github.com/aretw0/opera/internal/presentation/tui"
)

// RunOptions contains all the configuration for the root command.
type RunOptions struct {
	ConfigPath string
	EnvFile    string
	Overrides  Overrides
	NoBanner   bool

	// Environ replaces the process environment when non-nil.
	Environ []string
	Input   io.Reader
	Output  io.Writer
}

// Overrides holds values set on the command line. Nil means unset.
type Overrides struct {
	LogLevel     *string
	LogFormat    *string
	Policy       *string
	CacheBackend *string
	RedisAddr    *string
	Diagnostics  *string
	Hash         *int
	Threads      *int
}

// Apply writes every set override into cfg.
func (o Overrides) Apply(cfg *config.Config) {
	setString(&cfg.Log.Level, o.LogLevel)
	setString(&cfg.Log.Format, o.LogFormat)
	setString(&cfg.Time.Policy, o.Policy)
	setString(&cfg.Cache.Backend, o.CacheBackend)
	setString(&cfg.Cache.Addr, o.RedisAddr)
	setString(&cfg.Diagnostics.Addr, o.Diagnostics)
	if o.Hash != nil {
		cfg.Engine.HashMB = *o.Hash
	}
	if o.Threads != nil {
		cfg.Engine.Threads = *o.Threads
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// LoadConfig resolves the configuration and applies the flag overrides.
func LoadConfig(opts RunOptions) (*config.Config, error) {
	loadOpts := []config.Option{config.WithEnvFile(opts.EnvFile)}
	if opts.Environ != nil {
		loadOpts = append(loadOpts, config.WithEnviron(opts.Environ))
	}
	cfg, err := config.Load(opts.ConfigPath, loadOpts...)
	if err != nil {
		return nil, err
	}
	opts.Overrides.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs one engine process: bootstrap, the event loop and the
// optional diagnostics server. A panic on this goroutine is reported to
// the GUI and ends the process cleanly.
func Execute(ctx context.Context, opts RunOptions) error {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cfg, err := LoadConfig(opts)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logger := createLogger(cfg).With("session_id", uuid.NewString())
	if !opts.NoBanner {
		tui.PrintBanner(strings.TrimSpace(opera.Version))
	}

	return Guard(opts.Output, logger, func() error {
		return runSession(ctx, cfg, opts, logger)
	})
}

func runSession(ctx context.Context, cfg *config.Config, opts RunOptions, logger *slog.Logger) error {
	m := metrics.New()

	eng, closeCache, err := createEngine(ctx, cfg, m, logger)
	if err != nil {
		fmt.Fprintf(opts.Output, "info string ERROR: %v\n", err)
		return fmt.Errorf("error initializing engine: %w", err)
	}
	defer closeCache()
	defer eng.Close()

	logger.Info("Session started",
		"version", strings.TrimSpace(opera.Version),
		"policy", cfg.Time.Policy,
		"cache", cfg.Cache.Backend)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return eng.Run(gctx, opts.Input, opts.Output)
	})

	if cfg.Diagnostics.Addr != "" {
		handler := diagnostics.NewHandler(eng.Dispatcher(), eng.LoopStats, m.Registry(), logger)
		srv := diagnostics.NewServer(cfg.Diagnostics.Addr, handler, logger)
		g.Go(func() error {
			// diagnostics failures are logged, not returned
			if err := srv.Run(gctx); err != nil {
				logger.Warn("Diagnostics server failed", "addr", cfg.Diagnostics.Addr, "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("Session finished", "error", err)
	return err
}
