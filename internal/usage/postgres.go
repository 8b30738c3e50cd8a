package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OpenPostgres creates a pgx pool for the usage table.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "autofill"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return pool, nil
}

// HealthCheck pings the pool to catch DSN issues early.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS token_usage (
	client_id    TEXT PRIMARY KEY,
	total_tokens BIGINT NOT NULL DEFAULT 0,
	reset_at     TIMESTAMPTZ NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL
)`

const pgUpsert = `
INSERT INTO token_usage (client_id, total_tokens, reset_at, last_updated)
VALUES ($1, $2, $3, $4)
ON CONFLICT (client_id) DO UPDATE SET
	total_tokens = CASE WHEN token_usage.reset_at <= EXCLUDED.last_updated
		THEN EXCLUDED.total_tokens ELSE token_usage.total_tokens + EXCLUDED.total_tokens END,
	reset_at = CASE WHEN token_usage.reset_at <= EXCLUDED.last_updated
		THEN EXCLUDED.reset_at ELSE token_usage.reset_at END,
	last_updated = EXCLUDED.last_updated
RETURNING total_tokens, reset_at`

const pgSelect = `SELECT total_tokens, reset_at FROM token_usage WHERE client_id = $1`

// Postgres stores windows in the token_usage table.
type Postgres struct {
	pool   *pgxpool.Pool
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewPostgres(pool *pgxpool.Pool, window time.Duration, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Postgres{pool: pool, window: window, logger: logger, now: time.Now}
}

// Migrate creates the token_usage table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("usage: create token_usage: %w", err)
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, clientID string, tokens int64) (Window, error) {
	if err := checkArgs(clientID, tokens); err != nil {
		return Window{}, err
	}
	now := p.now().UTC()
	w := Window{ClientID: clientID}
	err := p.pool.QueryRow(ctx, pgUpsert, clientID, tokens, now.Add(p.window), now).Scan(&w.TotalTokens, &w.ResetAt)
	if err != nil {
		return Window{}, fmt.Errorf("usage: record tokens: %w", err)
	}
	return w, nil
}

func (p *Postgres) Get(ctx context.Context, clientID string) (Window, error) {
	if clientID == "" {
		return Window{}, ErrEmptyClientID
	}
	w := Window{ClientID: clientID}
	err := p.pool.QueryRow(ctx, pgSelect, clientID).Scan(&w.TotalTokens, &w.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Window{ClientID: clientID}, nil
	}
	if err != nil {
		return Window{}, fmt.Errorf("usage: read tokens: %w", err)
	}
	if !p.now().Before(w.ResetAt) {
		return Window{ClientID: clientID}, nil
	}
	return w, nil
}

// Pool exposes the underlying pool for health checks.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) Close() error {
	p.logger.Info("closing database connections")
	p.pool.Close()
	return nil
}
