// Package postgres stores chat messages in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/multiroll/internal/config"
)

// ApplicationName tags every connection opened by a Pool.
const ApplicationName = "multiroll"

// ErrSchemaMissing is returned by Health when the database answers but the
// chat_messages table has not been migrated.
var ErrSchemaMissing = errors.New("chat_messages table missing")

// Pool is the connection pool behind the message repository.
type Pool struct {
	pool *pgxpool.Pool
}

// PoolStats is a point-in-time view of the pool's connections.
type PoolStats struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
}

// NewPool connects to the message database described by cfg.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a Pool that answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = min(cfg.MinConns, poolCfg.MaxConns)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %s: %w", cfg.Host, err)
	}
	return &Pool{pool: pool}, nil
}

// Health reports whether the database answers within timeout and carries the
// chat_messages table.
//
// Postcondition: Returns nil, ErrSchemaMissing, or the query error.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var present bool
	err := p.pool.QueryRow(ctx, `SELECT to_regclass('chat_messages') IS NOT NULL`).Scan(&present)
	if err != nil {
		return fmt.Errorf("database health: %w", err)
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}

// Stats snapshots the pool's connection counts.
func (p *Pool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{Total: s.TotalConns(), Idle: s.IdleConns(), Acquired: s.AcquiredConns()}
}

// Messages returns a MessageRepository on this pool.
func (p *Pool) Messages() *MessageRepository {
	return NewMessageRepository(p.pool)
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
