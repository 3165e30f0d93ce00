package state

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/msniranjan18/chit-chat-client/pkg/kv"
)

const (
	ThemeKey     = "chat-theme"
	DefaultTheme = "forest"
)

type PreferenceState struct {
	Theme string
}

type preferenceConfig struct {
	key      string
	fallback string
}

type PreferenceOption func(*preferenceConfig)

// WithKey overrides the storage key (default "chat-theme").
func WithKey(key string) PreferenceOption {
	return func(c *preferenceConfig) {
		c.key = key
	}
}

// WithDefault overrides the value used when nothing is stored.
func WithDefault(value string) PreferenceOption {
	return func(c *preferenceConfig) {
		c.fallback = value
	}
}

// Preference is a single persisted display preference, the chat theme.
// The backing store is owned by the caller.
type Preference struct {
	store kv.Store
	key   string
	state *Observable[PreferenceState]

	// mu orders writes so the reflected value matches the last persisted one.
	mu sync.Mutex
}

// NewPreference loads the stored value, or the default when none exists.
func NewPreference(ctx context.Context, store kv.Store, opts ...PreferenceOption) (*Preference, error) {
	cfg := preferenceConfig{key: ThemeKey, fallback: DefaultTheme}
	for _, opt := range opts {
		opt(&cfg)
	}

	value, ok, err := store.Get(ctx, cfg.key)
	if err != nil {
		return nil, fmt.Errorf("reading preference %q: %w", cfg.key, err)
	}
	if !ok || value == "" {
		value = cfg.fallback
	}

	return &Preference{
		store: store,
		key:   cfg.key,
		state: NewObservable(PreferenceState{Theme: value}),
	}, nil
}

func (p *Preference) Theme() string {
	return p.state.Get().Theme
}

// SetTheme persists value and then publishes it. On a storage error the
// published value is unchanged.
func (p *Preference) SetTheme(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrEmptyPreference
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Set(ctx, p.key, value); err != nil {
		return fmt.Errorf("saving preference %q: %w", p.key, err)
	}
	p.state.Update(func(st *PreferenceState) { st.Theme = value })
	return nil
}

func (p *Preference) State() PreferenceState {
	return p.state.Get()
}

func (p *Preference) Subscribe(fn func(PreferenceState)) func() {
	return p.state.Subscribe(fn)
}

func (p *Preference) Close() {
	p.state.Close()
}
