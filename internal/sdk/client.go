package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 30 * time.Second
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
)

// Client manages the WebSocket connection to a session.
type Client struct {
	url   string
	creds Credentials
	name  string
	log   *slog.Logger

	baseDelay time.Duration
	maxDelay  time.Duration
	pingEvery time.Duration

	mu           sync.Mutex
	writeMu      sync.Mutex // serialises all conn writes (ping, publish, disconnect)
	conn         *websocket.Conn
	seq          uint64
	connectionID string
	delay        time.Duration
	closing      bool
	pingCancel   context.CancelFunc
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max >= base && max > 0 {
			c.maxDelay = max
		}
	}
}

// WithDisplayName sets the name announced on connect.
func WithDisplayName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithPingInterval overrides the keepalive interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingEvery = d }
}

// NewClient creates a client for the session at url.
func NewClient(url string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		url:       url,
		creds:     creds,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		pingEvery: pingInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	c.log = c.log.With("component", "sdk")
	c.delay = c.baseDelay
	return c
}

// --- Bubble Tea messages ---

// SessionConnectedMsg is sent when the session accepts the connection.
type SessionConnectedMsg struct {
	SessionID    string
	ConnectionID string
}

// SessionDisconnectedMsg is sent when the connection drops. Requested is
// true when the drop followed a call to Disconnect.
type SessionDisconnectedMsg struct {
	Err       error
	Requested bool
}

// SessionErrorMsg reports a session error. RetryIn is zero when retrying
// cannot help, e.g. rejected credentials.
type SessionErrorMsg struct {
	Err     error
	RetryIn time.Duration
}

// StreamCreatedMsg announces a remote stream.
type StreamCreatedMsg struct{ Stream Stream }

// StreamDestroyedMsg announces a remote stream going away.
type StreamDestroyedMsg struct {
	StreamID string
	Reason   string
}

// Connect returns a command that dials the session, presents the
// credentials and waits for the server's answer. It produces either a
// SessionConnectedMsg or a SessionErrorMsg.
func (c *Client) Connect(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		return c.connect(ctx)
	}
}

func (c *Client) connect(ctx context.Context) tea.Msg {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		retry := c.nextDelay()
		c.log.Warn("dial failed", "url", c.url, "err", err, "retry_in", retry)
		return SessionErrorMsg{Err: fmt.Errorf("dial %s: %w", c.url, err), RetryIn: retry}
	}

	// No write mutex needed here because the connection isn't shared yet
	// (not stored in c.conn).
	frame, err := Encode(MsgConnect, 0, ConnectPayload{Credentials: c.creds, Name: c.name})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err = conn.WriteMessage(websocket.TextMessage, frame)
	}
	if err != nil {
		conn.Close()
		retry := c.nextDelay()
		return SessionErrorMsg{Err: fmt.Errorf("send connect: %w", err), RetryIn: retry}
	}

	ack, err := c.awaitAck(conn)
	if err != nil {
		conn.Close()
		var se *ServerError
		if errors.As(err, &se) {
			return SessionErrorMsg{Err: se}
		}
		retry := c.nextDelay()
		return SessionErrorMsg{Err: err, RetryIn: retry}
	}

	c.mu.Lock()
	if c.pingCancel != nil {
		c.pingCancel()
	}
	prev := c.conn
	pingCtx, pingCancel := context.WithCancel(ctx)
	c.conn = conn
	c.seq = 0
	c.connectionID = ack.ConnectionID
	c.delay = c.baseDelay
	c.closing = false
	c.pingCancel = pingCancel
	c.mu.Unlock()

	// A superseded connection would otherwise stay joined as a second peer.
	if prev != nil {
		c.log.Warn("replacing open connection")
		c.writeMu.Lock()
		prev.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		prev.Close()
	}

	go c.pingLoop(pingCtx, conn)

	c.log.Info("session connected", "session_id", ack.SessionID, "connection_id", ack.ConnectionID)
	return SessionConnectedMsg{SessionID: ack.SessionID, ConnectionID: ack.ConnectionID}
}

// awaitAck reads frames until the server accepts or rejects the connect.
func (c *Client) awaitAck(conn *websocket.Conn) (*SessionConnectedPayload, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("await session: %w", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case MsgSessionConnected:
			var p SessionConnectedPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return nil, fmt.Errorf("decode session_connected: %w", err)
			}
			return &p, nil
		case MsgError:
			var p ErrorPayload
			json.Unmarshal(msg.Payload, &p)
			return nil, &ServerError{Code: p.Code, Message: p.Message}
		}
	}
}

func (c *Client) nextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.delay
	c.delay = min(c.delay*2, c.maxDelay)
	return d
}

// ReadLoop returns a command that reads the next event from the connection.
// It should be re-issued after every message it produces.
func (c *Client) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return SessionDisconnectedMsg{Err: ErrNotConnected}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				// A connection replaced by a newer one ends on our request.
				requested := c.closing || c.conn != conn
				if c.conn == conn {
					c.conn = nil
					if c.pingCancel != nil {
						c.pingCancel()
						c.pingCancel = nil
					}
				}
				c.mu.Unlock()
				conn.Close()
				return SessionDisconnectedMsg{Err: err, Requested: requested}
			}

			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.log.Debug("dropping malformed frame", "err", err)
				continue
			}

			c.mu.Lock()
			c.seq = msg.Seq
			c.mu.Unlock()

			if teaMsg := c.dispatch(msg); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(msg Message) tea.Msg {
	switch msg.Type {
	case MsgStreamCreated:
		var p StreamCreatedPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return StreamCreatedMsg{Stream: p.Stream}
		}
	case MsgStreamDestroyed:
		var p StreamDestroyedPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return StreamDestroyedMsg{StreamID: p.StreamID, Reason: p.Reason}
		}
	case MsgError:
		var p ErrorPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return SessionErrorMsg{Err: &ServerError{Code: p.Code, Message: p.Message}}
		}
	}
	return nil
}

func (c *Client) write(t MessageType, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	frame, err := Encode(t, 0, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Publish announces the local publisher stream.
func (c *Client) Publish(name string) error {
	return c.write(MsgPublish, PublishPayload{Name: name, HasVideo: true, HasAudio: true})
}

// Unpublish withdraws the local publisher stream.
func (c *Client) Unpublish() error {
	return c.write(MsgUnpublish, nil)
}

// Disconnect leaves the session. The pending ReadLoop command returns a
// SessionDisconnectedMsg with Requested set.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.closing = true
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	err := c.write(MsgDisconnect, nil)
	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	return err
}

// ConnectionID returns the id the server assigned to this connection.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Seq returns the last seen sequence number.
func (c *Client) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
