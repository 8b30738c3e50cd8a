package usage

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local ledger.
type Memory struct {
	mu     sync.Mutex
	window time.Duration
	rows   map[string]Window
	now    func() time.Time
}

func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{window: window, rows: make(map[string]Window), now: time.Now}
}

func (m *Memory) Add(_ context.Context, clientID string, tokens int64) (Window, error) {
	if err := checkArgs(clientID, tokens); err != nil {
		return Window{}, err
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[clientID]
	if !ok || !now.Before(w.ResetAt) {
		w = Window{ClientID: clientID, ResetAt: now.Add(m.window)}
	}
	w.TotalTokens += tokens
	m.rows[clientID] = w
	return w, nil
}

func (m *Memory) Get(_ context.Context, clientID string) (Window, error) {
	if clientID == "" {
		return Window{}, ErrEmptyClientID
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[clientID]
	if !ok || !now.Before(w.ResetAt) {
		return Window{ClientID: clientID}, nil
	}
	return w, nil
}

func (m *Memory) Close() error { return nil }
