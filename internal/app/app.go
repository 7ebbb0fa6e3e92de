// Package app wires the configured adapters into a ready-to-run pipeline.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-alert-service/internal/adapter/feedhttp"
	kafkaadapter "github.com/couchcryptid/disaster-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-alert-service/internal/adapter/notify"
	redisadapter "github.com/couchcryptid/disaster-alert-service/internal/adapter/redis"
	"github.com/couchcryptid/disaster-alert-service/internal/config"
	"github.com/couchcryptid/disaster-alert-service/internal/feed"
	"github.com/couchcryptid/disaster-alert-service/internal/observability"
	"github.com/couchcryptid/disaster-alert-service/internal/pipeline"
	"github.com/couchcryptid/disaster-alert-service/internal/store"
)

const userAgent = "disaster-alert-service"

// App holds the wired pipeline and the resources it owns.
type App struct {
	Pipeline *pipeline.Pipeline
	Seen     *store.SeenStore
	Snapshot *feed.Snapshot

	checkers []sharedobs.ReadinessChecker
	closers  []io.Closer
}

// Build assembles the pipeline from cfg. Optional backends that cannot be
// reached degrade with a warning instead of failing startup.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *App {
	a := &App{Snapshot: loadSnapshot(cfg.SnapshotPath, logger)}

	backend := a.stateBackend(ctx, cfg, logger)
	a.Seen = store.NewSeenStore(backend, cfg.StateKey, cfg.SeenHistorySize)
	if err := a.Seen.Load(ctx); err != nil {
		logger.Warn("seen state unavailable, starting empty", "error", err)
	}

	var sink notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		sink = notify.NewWebhookSink(cfg.NotifyWebhookURL, cfg.NotifyTimeout, logger)
		logger.Info("webhook notifications enabled")
	} else {
		sink = notify.NewLogSink(logger)
		logger.Info("webhook not configured, logging notifications")
	}
	enabled := cfg.NotifyEnabled
	gate := notify.NewGate(sink, notify.PermissionFunc(func(context.Context) bool { return enabled }), logger)

	clock := clockwork.NewRealClock()
	var publisher pipeline.RecordPublisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, clock, logger)
		a.closers = append(a.closers, writer)
		publisher = writer
		logger.Info("record publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	source := feed.NewSource(
		feedhttp.NewClient(cfg.FetchTimeout, userAgent, logger),
		cfg.Endpoints,
		a.Snapshot,
		cfg.FetchTimeout,
		logger,
	)
	dispatcher := pipeline.NewDispatcher(gate, a.Seen, logger, metrics)
	a.Pipeline = pipeline.New(source, dispatcher, publisher, a.Snapshot, clock, logger, metrics)
	a.checkers = append([]sharedobs.ReadinessChecker{a.Pipeline}, a.checkers...)

	return a
}

// CheckReadiness reports the first failing dependency.
func (a *App) CheckReadiness(ctx context.Context) error {
	for _, c := range a.checkers {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every owned resource.
func (a *App) Close() error {
	errs := make([]error, 0, len(a.closers))
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (a *App) stateBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) store.KeyValueStore {
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		rs, err := redisadapter.NewStore(ctx, redisadapter.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, seen state kept in memory", "error", err)
			return store.NewMemoryStore()
		}
		a.closers = append(a.closers, rs)
		a.checkers = append(a.checkers, rs)
		logger.Info("seen state backed by redis", "addr", cfg.RedisAddr)
		return rs
	case config.StateBackendMemory:
		return store.NewMemoryStore()
	default:
		logger.Info("seen state backed by file", "dir", cfg.StateDir)
		return store.NewFileStore(cfg.StateDir)
	}
}

func loadSnapshot(path string, logger *slog.Logger) *feed.Snapshot {
	if path == "" {
		return feed.NewSnapshot()
	}
	snap, err := feed.LoadSnapshotFile(path)
	if err != nil {
		logger.Warn("fallback snapshot unavailable, starting empty", "path", path, "error", err)
		return feed.NewSnapshot()
	}
	return snap
}
