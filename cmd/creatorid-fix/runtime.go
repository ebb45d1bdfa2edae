package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/symphonyoss/integration-maintenance/internal/config"
	"github.com/symphonyoss/integration-maintenance/internal/database"
	"github.com/symphonyoss/integration-maintenance/internal/fix"
	"github.com/symphonyoss/integration-maintenance/internal/history"
	"github.com/symphonyoss/integration-maintenance/internal/instance/repository"
	"github.com/symphonyoss/integration-maintenance/internal/report"
	"github.com/symphonyoss/integration-maintenance/internal/runstate"
	"github.com/symphonyoss/integration-maintenance/internal/storage"
	"github.com/symphonyoss/integration-maintenance/pkg/logger"
	"github.com/symphonyoss/integration-maintenance/pkg/metrics"
)

type historyLister interface {
	Recent(ctx context.Context, collection string, limit int64) ([]report.Report, error)
}

type lastReporter interface {
	LastReport(ctx context.Context, collection string, v interface{}) (bool, error)
}

// runtime is everything a command needs, connected according to the config.
type runtime struct {
	cfg      *config.Config
	repo     repository.Repository
	fixer    *fix.Fixer
	history  historyLister
	last     lastReporter
	registry *prometheus.Registry
	closers  []func(context.Context)
}

// needs lists optional collaborators a command requires regardless of config.
type needs struct {
	backups bool
}

// openRuntime is swapped out by tests.
var openRuntime = connect

func connect(ctx context.Context, cfg *config.Config, n needs) (*runtime, error) {
	rt := &runtime{cfg: cfg, registry: prometheus.NewRegistry()}
	metrics.RegisterCollectors(rt.registry)

	client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.ConnectAttempts, time.Second)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
	db := client.Database(cfg.MongoDB.Database)
	rt.repo = repository.NewMongoRepo(db.Collection(cfg.Fix.Collection), cfg.Fix.Field)
	logger.Infof("connected to MongoDB: database=%s collection=%s", cfg.MongoDB.Database, cfg.Fix.Collection)

	var opts []fix.Option
	if cfg.MongoDB.HistoryCollection != "" {
		h := history.NewMongoHistory(db.Collection(cfg.MongoDB.HistoryCollection))
		if err := h.EnsureIndexes(ctx); err != nil {
			logger.Warnf("run history index: %v", err)
		}
		rt.history = h
		opts = append(opts, fix.WithHistory(h))
	}

	if addr := cfg.Redis.Addr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("redis %s: %w", addr, err)
		}
		rt.closers = append(rt.closers, func(context.Context) { _ = rc.Close() })
		store := runstate.NewRedisStore(rc, "")
		rt.last = store
		opts = append(opts, fix.WithLocker(store), fix.WithReportCache(store))
		logger.Infof("using Redis run lock at %s", addr)
	} else {
		logger.Warnf("REDIS_HOST not set: running without a run lock")
	}

	if cfg.Fix.Backup || n.backups {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("backup storage: %w", err)
		}
		opts = append(opts, fix.WithBackups(s))
	}

	rt.fixer, err = fix.New(rt.repo, fixOptions(cfg), opts...)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func fixOptions(cfg *config.Config) fix.Options {
	return fix.Options{
		Collection: cfg.Fix.Collection,
		Field:      cfg.Fix.Field,
		Value:      cfg.Fix.Default,
		DryRun:     cfg.Fix.DryRun,
		LockTTL:    cfg.Fix.LockTTL,
	}
}

// pushMetrics sends the run's metrics to the Pushgateway when one is configured.
func (rt *runtime) pushMetrics() {
	if err := metrics.Push(rt.cfg.Metrics.PushgatewayURL, rt.cfg.Metrics.Job, rt.registry); err != nil {
		logger.Warnf("%v", err)
	}
}

func (rt *runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i](ctx)
	}
	rt.closers = nil
}
