package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer upgrades /socket, records the upgrade request and lets the
// test push frames to the connected client.
type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	userID   string
	cookie   string
	received chan Envelope
	ready    chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		received: make(chan Envelope, 8),
		ready:    make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conn = conn
		ts.userID = r.URL.Query().Get("userId")
		if c, err := r.Cookie("jwt"); err == nil {
			ts.cookie = c.Value
		}
		ts.mu.Unlock()
		close(ts.ready)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) == nil {
				ts.received <- env
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket"
}

func (ts *testServer) push(t *testing.T, frame string) {
	t.Helper()
	<-ts.ready
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NoError(t, ts.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (ts *testServer) dropClient(t *testing.T) {
	t.Helper()
	<-ts.ready
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NoError(t, ts.conn.Close())
}

type cookieJar struct{ cookies []*http.Cookie }

func (j *cookieJar) SetCookies(*url.URL, []*http.Cookie) {}
func (j *cookieJar) Cookies(*url.URL) []*http.Cookie    { return j.cookies }

func TestDial_DispatchesEventsToHandlers(t *testing.T) {
	ts := newTestServer(t)
	jar := &cookieJar{cookies: []*http.Cookie{{Name: "jwt", Value: "tok"}}}
	d := &Dialer{URL: ts.wsURL(), Jar: jar}

	ch, err := d.Dial(context.Background(), "user-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	got := make(chan string, 4)
	ch.On(EventNewMessage, func(p json.RawMessage) { got <- string(p) })

	<-ts.ready
	ts.mu.Lock()
	assert.Equal(t, "user-1", ts.userID)
	assert.Equal(t, "tok", ts.cookie)
	ts.mu.Unlock()

	ts.push(t, `not json`)
	ts.push(t, `{"type":"unknown","payload":{}}`)
	ts.push(t, `{"type":"newMessage","payload":{"_id":"m1"}}`)

	select {
	case p := <-got:
		assert.JSONEq(t, `{"_id":"m1"}`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestConn_OffStopsDelivery(t *testing.T) {
	ts := newTestServer(t)
	ch, err := (&Dialer{URL: ts.wsURL()}).Dial(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	got := make(chan string, 4)
	ch.On(EventNewMessage, func(p json.RawMessage) { got <- "message" })
	ch.On(EventOnlineUsers, func(p json.RawMessage) { got <- "online" })
	ch.Off(EventNewMessage)

	ts.push(t, `{"type":"newMessage","payload":{}}`)
	ts.push(t, `{"type":"getOnlineUsers","payload":[]}`)

	select {
	case v := <-got:
		assert.Equal(t, "online", v)
	case <-time.After(2 * time.Second):
		t.Fatal("online handler not called")
	}
	assert.Empty(t, got)
}

func TestConn_Send(t *testing.T) {
	ts := newTestServer(t)
	ch, err := (&Dialer{URL: ts.wsURL()}).Dial(context.Background(), "u1")
	require.NoError(t, err)
	conn := ch.(*Conn)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.Send("typing", map[string]bool{"isTyping": true}))

	select {
	case env := <-ts.received:
		assert.Equal(t, "typing", env.Type)
		assert.JSONEq(t, `{"isTyping":true}`, string(env.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}
}

func TestConn_DoneWhenServerDrops(t *testing.T) {
	ts := newTestServer(t)
	ch, err := (&Dialer{URL: ts.wsURL()}).Dial(context.Background(), "u1")
	require.NoError(t, err)
	conn := ch.(*Conn)

	ts.dropClient(t)

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after server dropped connection")
	}
	assert.ErrorIs(t, conn.Send("typing", nil), ErrClosed)
	require.NoError(t, conn.Close())
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ch, err := (&Dialer{URL: ts.wsURL()}).Dial(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	select {
	case <-ch.(*Conn).Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestDial_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := (&Dialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}).Dial(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestDialerSettings_Defaults(t *testing.T) {
	s := (&Dialer{PongWait: 10 * time.Second, PingPeriod: time.Minute}).settings()
	assert.Equal(t, 9*time.Second, s.pingPeriod)
	assert.Equal(t, defaultWriteWait, s.writeWait)
	assert.Equal(t, int64(defaultMaxMessageSize), s.maxMessageSize)
}
