// Package backend opens the record store the server runs on, together with
// the optional change feed publisher.
package backend

import (
	"context"
	"fmt"

	"finrecords/internal/amqp"
	"finrecords/internal/config"
	"finrecords/internal/log"
	"finrecords/internal/remote"
	"finrecords/internal/remote/memory"
	"finrecords/internal/storage"
)

// Store is the record store behind the HTTP API.
type Store interface {
	remote.RecordSync
	Ping(ctx context.Context) error
}

// Publisher announces confirmed record changes.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.RecordChangeMessage) error
}

type CleanupFunc func() error

// Result holds the opened store, the publisher (nil when the change feed
// is off) and the function releasing both.
type Result struct {
	Store     Store
	Publisher Publisher
	Cleanup   CleanupFunc
}

// Open creates the backend named by cfg.DataBackend.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.InfoContext(ctx, "Initialized memory backend")
		return &Result{Store: memory.New(), Cleanup: func() error { return nil }}, nil
	case config.BackendSQLite:
		return openSQLite(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}

func openSQLite(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	res := &Result{Store: repo, Cleanup: repo.Close}

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Records pending in SQLite are mirrored by the worker's sweep.
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change feed",
				log.FieldError, err.Error())
		} else {
			res.Publisher = client
			res.Cleanup = func() error {
				amqpErr := client.Close()
				if err := repo.Close(); err != nil {
					return err
				}
				return amqpErr
			}
			logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", cfg.SQLiteDBPath,
		"amqp_enabled", res.Publisher != nil)
	return res, nil
}
