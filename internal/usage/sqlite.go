package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS token_usage (
	client_id    TEXT PRIMARY KEY,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	reset_at     INTEGER NOT NULL,
	last_updated INTEGER NOT NULL
)`

// timestamps are unix milliseconds
const sqliteUpsert = `
INSERT INTO token_usage (client_id, total_tokens, reset_at, last_updated)
VALUES (?, ?, ?, ?)
ON CONFLICT (client_id) DO UPDATE SET
	total_tokens = CASE WHEN token_usage.reset_at <= excluded.last_updated
		THEN excluded.total_tokens ELSE token_usage.total_tokens + excluded.total_tokens END,
	reset_at = CASE WHEN token_usage.reset_at <= excluded.last_updated
		THEN excluded.reset_at ELSE token_usage.reset_at END,
	last_updated = excluded.last_updated
RETURNING total_tokens, reset_at`

const sqliteSelect = `SELECT total_tokens, reset_at FROM token_usage WHERE client_id = ?`

// SQLite stores windows in a local database file.
type SQLite struct {
	db     *sql.DB
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLite opens dsn (a file path or ":memory:") and creates the table.
func OpenSQLite(ctx context.Context, dsn string, window time.Duration, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("usage: open sqlite: %w", err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		// every new connection would see a fresh empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("usage: create token_usage: %w", err)
	}
	logger.Info("usage.sqlite.ready", "dsn", dsn)
	return &SQLite{db: db, window: window, logger: logger, now: time.Now}, nil
}

func (s *SQLite) Add(ctx context.Context, clientID string, tokens int64) (Window, error) {
	if err := checkArgs(clientID, tokens); err != nil {
		return Window{}, err
	}
	now := s.now()
	var total, resetMs int64
	err := s.db.QueryRowContext(ctx, sqliteUpsert, clientID, tokens, now.Add(s.window).UnixMilli(), now.UnixMilli()).
		Scan(&total, &resetMs)
	if err != nil {
		return Window{}, fmt.Errorf("usage: record tokens: %w", err)
	}
	return Window{ClientID: clientID, TotalTokens: total, ResetAt: time.UnixMilli(resetMs).UTC()}, nil
}

func (s *SQLite) Get(ctx context.Context, clientID string) (Window, error) {
	if clientID == "" {
		return Window{}, ErrEmptyClientID
	}
	var total, resetMs int64
	err := s.db.QueryRowContext(ctx, sqliteSelect, clientID).Scan(&total, &resetMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Window{ClientID: clientID}, nil
	}
	if err != nil {
		return Window{}, fmt.Errorf("usage: read tokens: %w", err)
	}
	if s.now().UnixMilli() >= resetMs {
		return Window{ClientID: clientID}, nil
	}
	return Window{ClientID: clientID, TotalTokens: total, ResetAt: time.UnixMilli(resetMs).UTC()}, nil
}

// Ping checks the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }
