package cli

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/opera"
	"github.com/aretw0/opera/internal/config"
	"github.com/aretw0/opera/internal/metrics"
	"github.com/aretw0/opera/pkg/adapters/chesscore"
	"github.com/aretw0/opera/pkg/adapters/memory"
	"github.com/aretw0/opera/pkg/adapters/redis"
	"github.com/aretw0/opera/pkg/engine"
	"github.com/aretw0/opera/pkg/ports"
	"github.com/aretw0/opera/pkg/runner"
)

const redisPingTimeout = 2 * time.Second

// createEngine initializes an Opera engine with standard CLI conventions.
// The returned func releases the analysis cache.
func createEngine(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*opera.Engine, func(), error) {
	cache, backend, closeCache := createCache(ctx, cfg, logger)

	core := chesscore.New(
		chesscore.WithCache(cache),
		chesscore.WithLogger(logger),
	)

	eng, err := opera.New(ctx,
		opera.WithCore(core),
		opera.WithLogger(logger),
		opera.WithLifecycleHooks(m.Hooks(createDebugHooks(logger))),
		opera.WithEngineOptions(
			engine.WithIdentification(cfg.Identification(strings.TrimSpace(opera.Version))),
			engine.WithConfig(cfg.Engine.EngineConfig),
			engine.WithInputLimits(cfg.Limits),
			engine.WithPolicy(cfg.TimePolicy()),
			engine.WithResponseCapacity(cfg.Loop.ResponseCapacity),
			engine.WithCacheBackend(backend),
			engine.WithStopTimeout(cfg.Loop.StopTimeout),
			engine.WithParseTimeout(cfg.Loop.ParseTimeout),
		),
		opera.WithRunnerOptions(
			runner.WithTimeouts(cfg.Timeouts()),
			runner.WithInputBufferSize(cfg.Loop.InputBufferSize),
			runner.WithTickInterval(cfg.Loop.TickInterval),
			runner.WithMonitoring(cfg.Loop.Monitoring),
			runner.WithTickHook(m.ObserveLoop),
		),
	)
	if err != nil {
		closeCache()
		return nil, func() {}, err
	}
	return eng, closeCache, nil
}

// createCache builds the configured analysis cache. An unreachable redis
// falls back to memory so the engine still plays.
func createCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.AnalysisCache, string, func()) {
	if cfg.Cache.Backend == "redis" {
		rc := redis.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB,
			redis.WithPrefix(cfg.Cache.Prefix),
			redis.WithTTL(cfg.Cache.TTL),
			redis.WithSizeMB(cfg.Engine.HashMB),
		)
		pctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		err := rc.Ping(pctx)
		if err == nil {
			logger.Info("Using redis analysis cache", "addr", cfg.Cache.Addr, "prefix", cfg.Cache.Prefix)
			return rc, "redis", func() { _ = rc.Close() }
		}
		logger.Warn("Redis unavailable, falling back to memory cache", "addr", cfg.Cache.Addr, "error", err)
		_ = rc.Close()
	}
	return memory.NewCache(cfg.Engine.HashMB), "memory", func() {}
}
