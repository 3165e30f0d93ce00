package push

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_OnEmitOff(t *testing.T) {
	e := NewEmitter()

	var got []string
	e.On(EventNewMessage, func(p json.RawMessage) { got = append(got, "first:"+string(p)) })
	e.On(EventNewMessage, func(p json.RawMessage) { got = append(got, "second:"+string(p)) })
	e.On(EventOnlineUsers, func(p json.RawMessage) { got = append(got, "online") })

	n := e.Emit(EventNewMessage, json.RawMessage(`1`))
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first:1", "second:1"}, got)

	e.Off(EventNewMessage)
	assert.Equal(t, 0, e.Emit(EventNewMessage, json.RawMessage(`2`)))
	assert.Equal(t, 1, e.HandlerCount(EventOnlineUsers))
	assert.Len(t, got, 2)
}

func TestEmitter_IgnoresNilHandler(t *testing.T) {
	e := NewEmitter()
	e.On(EventNewMessage, nil)
	assert.Equal(t, 0, e.HandlerCount(EventNewMessage))
}

func TestEmitter_HandlerMayUnregisterItself(t *testing.T) {
	e := NewEmitter()
	calls := 0
	e.On(EventNewMessage, func(json.RawMessage) {
		calls++
		e.Off(EventNewMessage)
	})

	e.Emit(EventNewMessage, nil)
	e.Emit(EventNewMessage, nil)
	assert.Equal(t, 1, calls)
}

func TestEmitter_CloseDropsHandlers(t *testing.T) {
	e := NewEmitter()
	e.On(EventNewMessage, func(json.RawMessage) {})
	require.NoError(t, e.Close())

	e.On(EventNewMessage, func(json.RawMessage) {})
	assert.Equal(t, 0, e.HandlerCount(EventNewMessage))
}

func TestEmitter_EmitJSON(t *testing.T) {
	e := NewEmitter()
	var ids []string
	e.On(EventOnlineUsers, func(p json.RawMessage) {
		require.NoError(t, json.Unmarshal(p, &ids))
	})

	n, err := e.EmitJSON(EventOnlineUsers, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"u1", "u2"}, ids)
}

func TestEmitter_ConcurrentUse(t *testing.T) {
	e := NewEmitter()
	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.On(EventNewMessage, func(json.RawMessage) {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
		go func() {
			defer wg.Done()
			e.Emit(EventNewMessage, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, e.HandlerCount(EventNewMessage))
}
