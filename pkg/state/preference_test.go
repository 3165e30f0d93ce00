package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msniranjan18/chit-chat-client/pkg/kv"
)

type failingStore struct {
	kv.Store
	getErr error
	setErr error
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, key, value)
}

func TestPreference_Default(t *testing.T) {
	p, err := NewPreference(context.Background(), kv.NewMemory())
	require.NoError(t, err)

	assert.Equal(t, DefaultTheme, p.Theme())
}

func TestPreference_Options(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "ui-theme", "dracula"))

	p, err := NewPreference(ctx, store, WithKey("ui-theme"), WithDefault("light"))
	require.NoError(t, err)
	assert.Equal(t, "dracula", p.Theme())

	p, err = NewPreference(ctx, kv.NewMemory(), WithDefault("light"))
	require.NoError(t, err)
	assert.Equal(t, "light", p.Theme())
}

func TestPreference_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := kv.OpenSQLite(ctx, path)
	require.NoError(t, err)
	p, err := NewPreference(ctx, store)
	require.NoError(t, err)

	var seen []string
	p.Subscribe(func(st PreferenceState) { seen = append(seen, st.Theme) })
	require.NoError(t, p.SetTheme(ctx, "retro"))
	assert.Equal(t, []string{"retro"}, seen)
	p.Close()
	require.NoError(t, store.Close())

	store, err = kv.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	p, err = NewPreference(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "retro", p.Theme())
}

func TestPreference_SetThemeFailureKeepsValue(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: kv.NewMemory()}
	p, err := NewPreference(ctx, store)
	require.NoError(t, err)

	store.setErr = errors.New("disk full")
	err = p.SetTheme(ctx, "retro")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, DefaultTheme, p.Theme())
}

func TestPreference_EmptyValue(t *testing.T) {
	p, err := NewPreference(context.Background(), kv.NewMemory())
	require.NoError(t, err)

	assert.ErrorIs(t, p.SetTheme(context.Background(), "  "), ErrEmptyPreference)
	assert.Equal(t, DefaultTheme, p.Theme())
}

func TestPreference_ReadError(t *testing.T) {
	store := &failingStore{Store: kv.NewMemory(), getErr: errors.New("locked")}

	_, err := NewPreference(context.Background(), store)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `reading preference "chat-theme"`)
}
