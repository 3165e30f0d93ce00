// Package kv holds small durable string values on the local machine or in
// a shared database. Preferences are its only user today.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/config"
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("kv: store closed")

// Store is a durable string map. Get reports ok=false for an absent key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (Store, error) {
	logger.Info().Str("backend", cfg.Backend).Msg("Opening preference store")

	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		s, err := OpenRedis(ctx, cfg.RedisURL, WithPrefix(cfg.KeyPrefix))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Memory is a non-durable Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
