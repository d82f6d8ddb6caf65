// Package app wires configuration into the shared infrastructure used by the server and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/config"
	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/worker"
	"github.com/pocketsafety/backend/pkg/database"
	"github.com/pocketsafety/backend/pkg/kv"
	"github.com/pocketsafety/backend/pkg/queue"
	"github.com/pocketsafety/backend/pkg/redis"
	"github.com/pocketsafety/backend/pkg/storage"
)

// ErrQueueUnavailable means sharing was requested but no Redis connection exists for the job queue.
var ErrQueueUnavailable = errors.New("share queue requires redis")

// Deps holds the long-lived connections of one process.
type Deps struct {
	KV    kv.Store
	Redis *redis.Client
	Pool  *pgxpool.Pool
	Files *storage.Local

	cfg    *config.Config
	logger *zap.Logger
}

// Open connects to the configured history backend, plus Redis when sharing needs the job queue.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	d := &Deps{Files: storage.NewLocal(), cfg: cfg, logger: logger}

	if cfg.Store.Backend == "redis" || cfg.AWS.SharingEnabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return nil, err
		}
		d.Redis = rdb
	}

	switch cfg.Store.Backend {
	case "redis":
		d.KV = kv.NewRedis(d.Redis.Client, cfg.Store.KeyPrefix, logger)
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Pool = pool
		if err := database.Migrate(ctx, pool); err != nil {
			d.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		d.KV = kv.NewPostgres(pool, cfg.Store.KeyPrefix)
	case "memory":
		logger.Warn("using in-memory history store; recordings metadata is lost on restart")
		d.KV = kv.NewMemory()
	default:
		d.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Info("history store ready", zap.String("backend", cfg.Store.Backend))
	return d, nil
}

// History builds the history store over the opened backend.
func (d *Deps) History() *history.Store {
	return history.NewStore(d.KV, d.Files, history.Config{
		RecordingsDir:     d.cfg.Store.RecordingsDir,
		EvictDeletesFiles: d.cfg.Store.EvictDeletesFiles,
	}, d.logger)
}

// Queue returns the share job queue, or nil when sharing is not configured.
func (d *Deps) Queue() *queue.Queue {
	if d.Redis == nil || !d.cfg.AWS.SharingEnabled() {
		return nil
	}
	return queue.NewQueue(d.Redis.Client, d.logger)
}

// ShareProcessor builds the share worker: S3 client, queue consumer and history updates.
func (d *Deps) ShareProcessor(ctx context.Context, store *history.Store) (*worker.ShareProcessor, error) {
	q := d.Queue()
	if q == nil {
		return nil, ErrQueueUnavailable
	}
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               d.cfg.AWS.Region,
		AccessKeyID:          d.cfg.AWS.AccessKeyID,
		SecretAccessKey:      d.cfg.AWS.SecretAccessKey,
		SharesBucket:         d.cfg.AWS.SharesBucket,
		PresignExpireMinutes: d.cfg.AWS.PresignExpireMinutes,
	}, d.logger)
	if err != nil {
		return nil, err
	}
	return worker.NewShareProcessor(store, d.Files, s3Client, q, d.logger), nil
}

// Close releases every connection that was opened.
func (d *Deps) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}
