package state

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msniranjan18/chit-chat-client/config"
	"github.com/msniranjan18/chit-chat-client/pkg/api"
	"github.com/msniranjan18/chit-chat-client/pkg/devserver"
	"github.com/msniranjan18/chit-chat-client/pkg/models"
	"github.com/msniranjan18/chit-chat-client/pkg/notify"
	"github.com/msniranjan18/chit-chat-client/pkg/push"
)

type endToEnd struct {
	apiURL    string
	socketURL string
}

func startDevServer(t *testing.T) endToEnd {
	t.Helper()
	cfg := &config.Config{
		Env: "development",
		DevServer: config.DevServerConfig{
			JWTSecret:     "integration",
			JWTExpiration: time.Hour,
		},
		WebSocket: config.WebSocketConfig{
			WriteWait:      time.Second,
			PongWait:       10 * time.Second,
			PingPeriod:     9 * time.Second,
			MaxMessageSize: 1 << 20,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := devserver.New(cfg, zerolog.Nop())
	srv.Start(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	return endToEnd{
		apiURL:    ts.URL + "/api",
		socketURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket",
	}
}

type participant struct {
	client  *api.Client
	session *Session
	conv    *Conversation
	toasts  *notify.Recorder
}

func join(t *testing.T, e endToEnd) *participant {
	t.Helper()
	client, err := api.New(e.apiURL)
	require.NoError(t, err)

	dialer := &push.Dialer{URL: e.socketURL, Jar: client.Jar(), Logger: zerolog.Nop()}
	toasts := &notify.Recorder{}
	session := NewSession(client, dialer, toasts, zerolog.Nop())
	conv := NewConversation(client, session, toasts, zerolog.Nop())
	t.Cleanup(func() {
		conv.Close()
		session.Close()
	})

	return &participant{client: client, session: session, conv: conv, toasts: toasts}
}

func TestEndToEnd_LiveConversation(t *testing.T) {
	e := startDevServer(t)
	ctx := context.Background()

	alice := join(t, e)
	bob := join(t, e)

	require.NoError(t, alice.session.SignUp(ctx, models.AuthRequest{FullName: "Alice", Email: "alice@example.com", Password: "secret1"}))
	require.NoError(t, bob.session.SignUp(ctx, models.AuthRequest{FullName: "Bob", Email: "bob@example.com", Password: "secret1"}))
	require.NotNil(t, alice.session.Channel())
	require.NotNil(t, bob.session.Channel())

	aliceID := alice.session.State().AuthUser.ID
	bobID := bob.session.State().AuthUser.ID

	require.Eventually(t, func() bool {
		return alice.session.State().IsOnline(bobID)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.conv.FetchPeers(ctx))
	peers := alice.conv.State().Users
	require.Len(t, peers, 1)
	require.NoError(t, alice.conv.OpenConversation(ctx, &peers[0]))

	require.NoError(t, bob.conv.OpenConversation(ctx, &models.User{ID: aliceID}))
	require.NoError(t, bob.conv.SendMessage(ctx, models.MessageRequest{Text: "hello alice"}))

	require.Eventually(t, func() bool {
		return len(alice.conv.State().Messages) == 1
	}, 2*time.Second, 10*time.Millisecond)
	got := alice.conv.State().Messages[0]
	assert.Equal(t, bobID, got.SenderID)
	assert.Equal(t, "hello alice", got.Text)

	require.NoError(t, alice.conv.SendMessage(ctx, models.MessageRequest{Text: "hi bob"}))
	require.Eventually(t, func() bool {
		return len(bob.conv.State().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, alice.conv.State().Messages, 2)

	require.NoError(t, alice.session.Logout(ctx))
	assert.Nil(t, alice.session.Channel())
	require.Eventually(t, func() bool {
		return !bob.session.State().IsOnline(aliceID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEndToEnd_CheckSessionAndFailedLogin(t *testing.T) {
	e := startDevServer(t)
	ctx := context.Background()

	p := join(t, e)
	p.session.CheckSession(ctx)
	assert.Nil(t, p.session.State().AuthUser)
	assert.False(t, p.session.State().IsCheckingAuth)
	assert.Empty(t, p.toasts.Toasts())

	err := p.session.Login(ctx, models.AuthRequest{Email: "ghost@example.com", Password: "secret1"})
	require.Error(t, err)
	last, _ := p.toasts.Last()
	assert.Equal(t, "Invalid credentials", last.Message)
	assert.False(t, p.session.State().IsLoggingIn)

	require.NoError(t, p.session.SignUp(ctx, models.AuthRequest{FullName: "Gus", Email: "ghost@example.com", Password: "secret1"}))
	p.session.Close()

	restored := NewSession(p.client, nil, notify.Nop, zerolog.Nop())
	restored.CheckSession(ctx)
	require.NotNil(t, restored.State().AuthUser)
	assert.Equal(t, "Gus", restored.State().AuthUser.FullName)
}
