package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/pkg/metrics"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteWait        = 10 * time.Second
	defaultPongWait         = 60 * time.Second
	defaultMaxMessageSize   = 10 * 1024 * 1024 // 10MB
	sendBufferSize          = 64
)

// ErrClosed is returned by Send after the connection is closed.
var ErrClosed = errors.New("push: connection closed")

// Dialer opens websocket Channels. Jar must be the API client's cookie jar
// so the session cookie authenticates the upgrade request.
type Dialer struct {
	URL    string
	Jar    http.CookieJar
	Header http.Header
	Logger zerolog.Logger

	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	MaxMessageSize   int64
}

type connSettings struct {
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

func (d *Dialer) settings() connSettings {
	s := connSettings{
		writeWait:      d.WriteWait,
		pongWait:       d.PongWait,
		pingPeriod:     d.PingPeriod,
		maxMessageSize: d.MaxMessageSize,
	}
	if s.writeWait <= 0 {
		s.writeWait = defaultWriteWait
	}
	if s.pongWait <= 0 {
		s.pongWait = defaultPongWait
	}
	if s.pingPeriod <= 0 || s.pingPeriod >= s.pongWait {
		s.pingPeriod = (s.pongWait * 9) / 10
	}
	if s.maxMessageSize <= 0 {
		s.maxMessageSize = defaultMaxMessageSize
	}
	return s
}

// Dial connects as userID. The server identifies the socket by the userId
// query parameter and authenticates it by cookie.
func (d *Dialer) Dial(ctx context.Context, userID string) (Channel, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing socket url: %w", err)
	}
	if userID != "" {
		q := u.Query()
		q.Set("userId", userID)
		u.RawQuery = q.Encode()
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	wsDialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		Jar:              d.Jar,
	}

	conn, resp, err := wsDialer.DialContext(ctx, u.String(), d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing push channel (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}

	c := newConn(conn, d.settings(), d.Logger.With().Str("user_id", userID).Logger())
	d.Logger.Info().Str("user_id", userID).Msg("push channel connected")
	return c, nil
}

// Conn is a websocket-backed Channel. Incoming envelopes are dispatched to
// the handlers registered for their type.
type Conn struct {
	conn     *websocket.Conn
	emitter  *Emitter
	settings connSettings
	logger   zerolog.Logger

	send      chan []byte
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newConn(conn *websocket.Conn, settings connSettings, logger zerolog.Logger) *Conn {
	c := &Conn{
		conn:     conn,
		emitter:  NewEmitter(),
		settings: settings,
		logger:   logger,
		send:     make(chan []byte, sendBufferSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	metrics.PushConnections.Inc()

	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
	return c
}

func (c *Conn) On(event string, h Handler) {
	c.emitter.On(event, h)
}

func (c *Conn) Off(event string) {
	c.emitter.Off(event)
}

// Done is closed once the connection is gone, whether the server dropped it
// or Close was called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send queues an event for the server.
func (c *Conn) Send(event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshaling %s envelope: %w", event, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case <-c.done:
		return ErrClosed
	case c.send <- frame:
		return nil
	}
}

// Close sends a close frame, tears down the socket and waits for both pumps.
// It must not be called from a Handler.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.settings.writeWait),
		)
		_ = c.conn.Close()
	})
	c.wg.Wait()
	return nil
}

func (c *Conn) readPump() {
	defer func() {
		c.wg.Done()
		c.finish()
	}()

	c.conn.SetReadLimit(c.settings.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.settings.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("push channel read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed push frame")
			continue
		}
		if env.Type == "" {
			continue
		}

		metrics.PushEventsReceived.WithLabelValues(env.Type).Inc()
		if n := c.emitter.Emit(env.Type, env.Payload); n == 0 {
			c.logger.Debug().Str("event", env.Type).Msg("no handler for push event")
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.settings.pingPeriod)
	defer func() {
		ticker.Stop()
		c.wg.Done()
	}()

	for {
		select {
		case <-c.quit:
			return
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Msg("push channel write error")
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// finish runs once the read side is gone.
func (c *Conn) finish() {
	_ = c.conn.Close()
	_ = c.emitter.Close()
	metrics.PushConnections.Dec()
	close(c.done)
	c.logger.Info().Msg("push channel disconnected")
}
