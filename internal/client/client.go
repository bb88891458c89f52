package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

// State is the connection lifecycle phase reported by a Connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

const (
	defaultReconnectDelay = 2 * time.Second
	defaultMaxAttempts    = 5
	defaultOutboxLimit    = 64
	joinTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
)

// Options configures Dial. BaseURL is the http(s) address of the chat server,
// Token and SessionID come from a prior API.Start.
type Options struct {
	BaseURL        string
	Token          string
	SessionID      string
	ReconnectDelay time.Duration
	MaxAttempts    int
	OutboxLimit    int
	Logger         *slog.Logger
}

// Connection is one view's realtime link to its session room. Each view owns
// its own Connection and its own callbacks; nothing is shared between views.
//
// A dropped link triggers a bounded reconnect loop. Sends issued while the
// link is down are queued in an in-memory outbox and flushed after the room
// has been rejoined; they are never delivered out of order relative to each
// other.
type Connection struct {
	opts     Options
	onEvent  func(wire.Message)
	onChange func(connected bool)

	state atomic.Int32

	mu     sync.Mutex
	ws     *websocket.Conn
	outbox []wire.ClientEvent

	closed    chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

// Dial connects, joins the session room and starts the read loop. The
// callbacks are invoked from the connection's own goroutine; onChange fires
// with false when the link drops and true once the room has been rejoined.
func Dial(ctx context.Context, opts Options, onEvent func(wire.Message), onChange func(bool)) (*Connection, error) {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.OutboxLimit <= 0 {
		opts.OutboxLimit = defaultOutboxLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Connection{
		opts:     opts,
		onEvent:  onEvent,
		onChange: onChange,
		closed:   make(chan struct{}),
		log:      opts.Logger.With("sessionId", opts.SessionID),
	}

	ws, err := c.dialAndJoin(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.state.Store(int32(StateConnected))
	c.notify(true)

	go c.run(ws)
	return c, nil
}

// State reports the current lifecycle phase.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Connected reports whether the room link is currently live.
func (c *Connection) Connected() bool {
	return c.State() == StateConnected
}

// Send delivers one encrypted message to the room. While the link is down the
// event is queued locally and flushed on the next successful rejoin; no error
// is returned and no network call is made.
func (c *Connection) Send(senderType, clientKey, content string) error {
	if c.State() == StateClosed {
		return errors.New("connection closed")
	}
	event := wire.ClientEvent{
		Type:       wire.EventMessage,
		SessionID:  c.opts.SessionID,
		SenderType: senderType,
		ClientKey:  clientKey,
		Content:    content,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateConnected || c.ws == nil {
		c.enqueueLocked(event)
		return nil
	}
	if err := c.writeLocked(event); err != nil {
		// The read loop will notice the broken link and reconnect;
		// keep the event so the flush can retry it.
		c.enqueueLocked(event)
	}
	return nil
}

// Close tears the connection down and stops any pending reconnect. Safe to
// call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.state.Store(int32(StateClosed))
		c.mu.Lock()
		if c.ws != nil {
			c.ws.Close()
		}
		c.mu.Unlock()
	})
	return nil
}

func (c *Connection) run(ws *websocket.Conn) {
	for {
		c.readAll(ws)
		if c.isClosed() {
			return
		}
		c.state.Store(int32(StateDisconnected))
		c.notify(false)

		ws = c.redial()
		if ws == nil {
			return
		}
		c.notify(true)
	}
}

// readAll consumes events until the link breaks.
func (c *Connection) readAll(ws *websocket.Conn) {
	for {
		var event wire.ServerEvent
		if err := ws.ReadJSON(&event); err != nil {
			ws.Close()
			return
		}
		c.dispatch(event)
	}
}

func (c *Connection) dispatch(event wire.ServerEvent) {
	switch event.Type {
	case wire.EventMessageEvent:
		if event.Body != nil && c.onEvent != nil {
			c.onEvent(*event.Body)
		}
	case wire.EventError:
		c.log.Warn("server reported error", "error", event.Error)
	}
}

// redial attempts a bounded number of reconnects with a fixed delay between
// attempts. On success the room has been rejoined and the outbox flushed.
// Returns nil once the attempts are exhausted or the connection was closed.
func (c *Connection) redial() *websocket.Conn {
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		c.state.Store(int32(StateConnecting))
		select {
		case <-c.closed:
			return nil
		case <-time.After(c.opts.ReconnectDelay):
		}

		ws, err := c.dialAndJoin(context.Background())
		if err != nil {
			c.log.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}
		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		c.state.Store(int32(StateConnected))
		c.flushOutbox()
		return ws
	}
	c.log.Error("reconnect attempts exhausted", "attempts", c.opts.MaxAttempts)
	c.state.Store(int32(StateDisconnected))
	return nil
}

// dialAndJoin opens the socket and completes the join handshake. Broadcasts
// that land between the join request and its acknowledgement are dispatched
// so nothing is dropped.
func (c *Connection) dialAndJoin(ctx context.Context) (*websocket.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, err
	}
	join := wire.ClientEvent{Type: wire.EventJoinRoom, SessionID: c.opts.SessionID}
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteJSON(join); err != nil {
		ws.Close()
		return nil, err
	}

	deadline := time.Now().Add(joinTimeout)
	for {
		ws.SetReadDeadline(deadline)
		var event wire.ServerEvent
		if err := ws.ReadJSON(&event); err != nil {
			ws.Close()
			return nil, err
		}
		switch event.Type {
		case wire.EventJoined:
			ws.SetReadDeadline(time.Time{})
			return ws, nil
		case wire.EventError:
			ws.Close()
			return nil, errors.New("join refused: " + event.Error)
		default:
			c.dispatch(event)
		}
	}
}

func (c *Connection) wsURL() string {
	url := c.opts.BaseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws?token=" + c.opts.Token
}

func (c *Connection) flushOutbox() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.outbox) > 0 {
		event := c.outbox[0]
		if err := c.writeLocked(event); err != nil {
			return
		}
		c.outbox = c.outbox[1:]
	}
}

func (c *Connection) enqueueLocked(event wire.ClientEvent) {
	if len(c.outbox) >= c.opts.OutboxLimit {
		c.log.Warn("outbox full, dropping oldest queued message", "limit", c.opts.OutboxLimit)
		c.outbox = c.outbox[1:]
	}
	c.outbox = append(c.outbox, event)
}

func (c *Connection) writeLocked(event wire.ClientEvent) error {
	if c.ws == nil {
		return errors.New("no connection")
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(event)
}

func (c *Connection) notify(connected bool) {
	if c.onChange != nil {
		c.onChange(connected)
	}
}

func (c *Connection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
