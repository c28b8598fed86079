package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// stores holds the repositories for the configured backend.
type stores struct {
	users    repository.UserRepository
	tickets  repository.TicketRepository
	counters repository.CounterRepository
	// checks feeds the readiness probe.
	checks map[string]handlers.Pinger
	close  func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	retry := cfg.Store.ConnectRetryDelay()

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, retry, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		return &stores{
			users:    repository.NewUserRepository(pg.Pool),
			tickets:  repository.NewTicketRepository(pg.Pool),
			counters: repository.NewCounterRepository(pg.Pool),
			checks:   map[string]handlers.Pinger{"postgres": pg},
			close:    pg.Close,
		}, nil

	case config.StoreDriverMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, retry, logger)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := mg.EnsureIndexes(ctx); err != nil {
			mg.Close(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return &stores{
			users:    repository.NewMongoUserRepository(mg.Database),
			tickets:  repository.NewMongoTicketRepository(mg.Database),
			counters: repository.NewMongoCounterRepository(mg.Database),
			checks:   map[string]handlers.Pinger{"mongo": mg},
			close:    func() { mg.Close(context.Background()) },
		}, nil

	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &stores{
			users:    repository.NewMemoryUserRepository(),
			tickets:  repository.NewMemoryTicketRepository(),
			counters: repository.NewMemoryCounterRepository(),
			checks:   map[string]handlers.Pinger{},
			close:    func() {},
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}
