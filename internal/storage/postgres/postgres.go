// Package postgres stores characters in PostgreSQL through pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/idlebattle/internal/config"
)

const (
	applicationName = "idlebattle"

	// Background settlement writes arrive in bursts at battle end; idle
	// connections above MinConns are shed between them.
	healthCheckPeriod      = 30 * time.Second
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultHealthTimeout   = 2 * time.Second
)

// Pool is the server's PostgreSQL handle. It owns the pgx pool and the
// timeout applied to readiness pings.
type Pool struct {
	db            *pgxpool.Pool
	healthTimeout time.Duration
}

// PoolConfig builds the pgx pool configuration for cfg.
//
// Precondition: cfg.DSN() must parse as a PostgreSQL URL.
// Postcondition: connections identify themselves as applicationName.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	if pc.MaxConnIdleTime <= 0 {
		pc.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	pc.HealthCheckPeriod = healthCheckPeriod
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	return pc, nil
}

// NewPool connects to PostgreSQL and confirms the server answers a ping
// within cfg.HealthTimeout.
//
// Postcondition: Returns a Pool ready for queries or a non-nil error; no
// connections are left open on error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	db, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	p := &Pool{db: db, healthTimeout: cfg.HealthTimeout}
	if p.healthTimeout <= 0 {
		p.healthTimeout = defaultHealthTimeout
	}
	if err := p.Health(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// Health pings the database, giving up after the pool's health timeout.
func (p *Pool) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
	defer cancel()
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Close releases every connection.
func (p *Pool) Close() { p.db.Close() }

// DB returns the pgx pool for repositories.
func (p *Pool) DB() *pgxpool.Pool { return p.db }
