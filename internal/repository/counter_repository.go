package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketCounter names the counter that numbers tickets.
const TicketCounter = "ticket"

// CounterRepository hands out strictly increasing sequence values.
// Next must be atomic across concurrent callers and processes.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

type counterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository returns a Postgres-backed counter.
func NewCounterRepository(pool *pgxpool.Pool) CounterRepository {
	return &counterRepository{pool: pool}
}

func (r *counterRepository) Next(ctx context.Context, name string) (int64, error) {
	const query = `
        INSERT INTO counters (name, value) VALUES ($1, 1)
        ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
        RETURNING value`
	var value int64
	err := r.pool.QueryRow(ctx, query, name).Scan(&value)
	return value, err
}
