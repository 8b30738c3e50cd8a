// Package usage keeps a rolling per-client count of model tokens.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultWindow is the length of one usage window.
const DefaultWindow = 24 * time.Hour

// Window is a client's token count for the current window. A zero ResetAt means no usage is recorded.
type Window struct {
	ClientID    string    `json:"client_id"`
	TotalTokens int64     `json:"total_tokens"`
	ResetAt     time.Time `json:"reset_at"`
}

// Ledger records token usage. A window starts on the first Add and resets once now >= ResetAt.
type Ledger interface {
	Add(ctx context.Context, clientID string, tokens int64) (Window, error)
	Get(ctx context.Context, clientID string) (Window, error)
	Close() error
}

var ErrEmptyClientID = errors.New("usage: client id is required")

// Config selects and tunes a ledger backend.
type Config struct {
	Driver string // "memory" | "postgres" | "sqlite" | "none"
	DSN    string
	Window time.Duration
}

// Open builds the ledger named by cfg.Driver and prepares its storage.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(cfg.Window), nil
	case "none":
		return Nop{}, nil
	case "postgres":
		pool, err := OpenPostgres(ctx, PostgresConfig{
			DSN:             cfg.DSN,
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     5 * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		l := NewPostgres(pool, cfg.Window, logger)
		if err := l.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return l, nil
	case "sqlite":
		l, err := OpenSQLite(ctx, cfg.DSN, cfg.Window, logger)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("usage: unknown driver %q", cfg.Driver)
	}
}

// Nop discards usage.
type Nop struct{}

func (Nop) Add(_ context.Context, clientID string, _ int64) (Window, error) {
	return Window{ClientID: clientID}, nil
}

func (Nop) Get(_ context.Context, clientID string) (Window, error) {
	return Window{ClientID: clientID}, nil
}

func (Nop) Close() error { return nil }

func checkArgs(clientID string, tokens int64) error {
	if clientID == "" {
		return ErrEmptyClientID
	}
	if tokens < 0 {
		return fmt.Errorf("usage: negative token count %d", tokens)
	}
	return nil
}
