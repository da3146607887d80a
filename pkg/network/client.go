package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/logging"
)

// ErrNotConnected is returned by sends while the client has no connection.
var ErrNotConnected = errors.New("not connected")

// Connection events published on the client's bus.
const (
	ClientDisconnected    event.Type = "client_disconnected"
	ClientReconnected     event.Type = "client_reconnected"
	ClientReconnectFailed event.Type = "client_reconnect_failed"
)

// ConnectionEvent describes a change in the client's connection.
type ConnectionEvent struct {
	event.BaseEvent
	Attempts int    `json:"attempts,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ClientOptions tunes reconnection and keepalive.
type ClientOptions struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	PingInterval         time.Duration
}

// DefaultClientOptions returns the standard client tuning.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		MaxReconnectAttempts: 5,
		ReconnectDelay:       3 * time.Second,
		PingInterval:         5 * time.Second,
	}
}

// Client plays one session against a lander server. Frames, outcomes and
// errors arrive on buffered channels that are never closed; slow readers
// lose the oldest frames.
type Client struct {
	url     string
	env     *config.EnvironmentConfig
	opts    ClientOptions
	bus     *event.Bus
	breaker *NetworkService
	logger  *logging.Logger
	dialer  *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	ws        *websocket.Conn
	hello     Hello
	welcome   Welcome
	connected bool
	closed    bool
	latency   time.Duration

	writeMu sync.Mutex

	frames   chan engine.FrameSnapshot
	outcomes chan OutcomeMessage
	errs     chan ErrorMessage
}

// NewClient creates a client for a ws:// URL. bus may be nil.
func NewClient(serverURL string, env *config.EnvironmentConfig, bus *event.Bus, logger *logging.Logger, opts ClientOptions) *Client {
	if logger == nil {
		logger = logging.NewLogger()
	}
	if bus == nil {
		bus = event.NewEventBus()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:      serverURL,
		env:      env,
		opts:     opts,
		bus:      bus,
		breaker:  NewNetworkService(env, logger),
		logger:   logger.With("component", "client"),
		dialer:   &websocket.Dialer{HandshakeTimeout: env.ReadTimeout},
		ctx:      ctx,
		cancel:   cancel,
		frames:   make(chan engine.FrameSnapshot, 32),
		outcomes: make(chan OutcomeMessage, 8),
		errs:     make(chan ErrorMessage, 8),
	}
}

// Connect dials the server and opens a session. Failures count against the
// circuit breaker.
func (c *Client) Connect(ctx context.Context, hello Hello) (Welcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Welcome{}, errors.New("client closed")
	}
	c.hello = hello
	c.mu.Unlock()

	if err := c.breaker.Execute(ctx, c.dial); err != nil {
		return Welcome{}, err
	}
	return c.Welcome(), nil
}

func (c *Client) dial(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.env.ReadTimeout)
	defer cancel()

	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return logging.WrapError(err, "failed to dial %s", c.url)
	}

	welcome, err := c.handshake(ws)
	if err != nil {
		ws.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return errors.New("client closed")
	}
	c.ws = ws
	c.welcome = welcome
	c.connected = true
	c.mu.Unlock()

	c.logger.Info(ctx, "connected", "session_id", welcome.SessionID, "profile", welcome.Profile)
	go c.readLoop(ws)
	go c.pingLoop(ws)
	return nil
}

func (c *Client) handshake(ws *websocket.Conn) (Welcome, error) {
	c.mu.Lock()
	hello := c.hello
	c.mu.Unlock()

	data, err := encodeEnvelope(MsgHello, hello)
	if err != nil {
		return Welcome{}, err
	}
	ws.SetWriteDeadline(time.Now().Add(c.env.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return Welcome{}, logging.WrapError(err, "failed to send hello")
	}

	ws.SetReadDeadline(time.Now().Add(c.env.ReadTimeout))
	_, data, err = ws.ReadMessage()
	if err != nil {
		return Welcome{}, logging.WrapError(err, "failed to read welcome")
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return Welcome{}, err
	}

	switch env.Type {
	case MsgWelcome:
		var w Welcome
		if err := decodePayload(env, &w); err != nil {
			return Welcome{}, err
		}
		ws.SetReadDeadline(time.Time{})
		return w, nil
	case MsgError:
		var e ErrorMessage
		if err := decodePayload(env, &e); err != nil {
			return Welcome{}, err
		}
		return Welcome{}, e
	default:
		return Welcome{}, fmt.Errorf("unexpected handshake reply %q", env.Type)
	}
}

// SendInput sends the latest control state.
func (c *Client) SendInput(in entity.ControlInput) error {
	return c.send(MsgInput, in)
}

// Reset starts a new round.
func (c *Client) Reset() error {
	return c.send(MsgReset, nil)
}

// Select queues a profile for the next round and for reconnects.
func (c *Client) Select(profile string) error {
	if err := c.send(MsgSelect, Select{Profile: profile}); err != nil {
		return err
	}
	c.mu.Lock()
	c.hello.Profile = profile
	c.mu.Unlock()
	return nil
}

func (c *Client) send(t MessageType, payload any) error {
	data, err := encodeEnvelope(t, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(c.env.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return logging.WrapError(err, "failed to send %s", t)
	}
	return nil
}

// Frames delivers snapshots from the server.
func (c *Client) Frames() <-chan engine.FrameSnapshot { return c.frames }

// Outcomes delivers finished rounds.
func (c *Client) Outcomes() <-chan OutcomeMessage { return c.outcomes }

// Errors delivers non-fatal server errors.
func (c *Client) Errors() <-chan ErrorMessage { return c.errs }

// Bus returns the bus carrying connection events.
func (c *Client) Bus() *event.Bus { return c.bus }

// Welcome returns the last handshake reply.
func (c *Client) Welcome() Welcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}

// Connected reports whether a connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Latency returns the last measured round trip.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// Breaker exposes the circuit breaker guarding dials.
func (c *Client) Breaker() *NetworkService { return c.breaker }

// Close ends the connection and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	c.cancel()
	if ws == nil {
		return nil
	}
	c.writeMu.Lock()
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(c.env.WriteTimeout))
	c.writeMu.Unlock()
	return ws.Close()
}

func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			c.handleDisconnect(ws, err)
			return
		}
		if kind == websocket.BinaryMessage {
			frame, err := DecodeFrame(data)
			if err != nil {
				c.logger.Warn(c.ctx, "dropping bad frame", "error", err.Error())
				continue
			}
			c.pushFrame(frame)
			continue
		}
		c.handleText(data)
	}
}

func (c *Client) pushFrame(f engine.FrameSnapshot) {
	for {
		select {
		case c.frames <- f:
			return
		default:
		}
		select {
		case <-c.frames:
		default:
		}
	}
}

func (c *Client) handleText(data []byte) {
	env, err := decodeEnvelope(data)
	if err != nil {
		c.logger.Warn(c.ctx, "dropping bad message", "error", err.Error())
		return
	}
	switch env.Type {
	case MsgOutcome:
		var o OutcomeMessage
		if err := decodePayload(env, &o); err != nil {
			c.logger.Warn(c.ctx, "dropping bad outcome", "error", err.Error())
			return
		}
		select {
		case c.outcomes <- o:
		case <-c.ctx.Done():
		}
	case MsgError:
		var e ErrorMessage
		if err := decodePayload(env, &e); err != nil {
			return
		}
		c.logger.Warn(c.ctx, "server error", "code", e.Code, "message", e.Message)
		select {
		case c.errs <- e:
		default:
		}
	case MsgPong:
		var p Ping
		if err := decodePayload(env, &p); err != nil || p.Sent == 0 {
			return
		}
		rtt := time.Since(time.Unix(0, p.Sent))
		c.mu.Lock()
		c.latency = rtt
		c.mu.Unlock()
	}
}

func (c *Client) pingLoop(ws *websocket.Conn) {
	interval := c.opts.PingInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			current := c.ws
			c.mu.Unlock()
			if current != ws {
				return
			}
			if err := c.send(MsgPing, Ping{Sent: time.Now().UnixNano()}); err != nil {
				c.logger.Debug(c.ctx, "ping failed", "error", err.Error())
			}
		}
	}
}

func (c *Client) handleDisconnect(ws *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.closed || c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = false
	c.mu.Unlock()
	ws.Close()

	c.logger.Warn(c.ctx, "disconnected", "error", cause.Error())
	c.bus.Publish(&ConnectionEvent{
		BaseEvent: event.BaseEvent{EventType: ClientDisconnected, Source: c},
		Reason:    cause.Error(),
	})
	if c.opts.MaxReconnectAttempts > 0 {
		go c.reconnect()
	}
}

func (c *Client) reconnect() {
	var err error
	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		select {
		case <-time.After(c.opts.ReconnectDelay):
		case <-c.ctx.Done():
			return
		}

		if err = c.breaker.Execute(c.ctx, c.dial); err == nil {
			c.bus.Publish(&ConnectionEvent{
				BaseEvent: event.BaseEvent{EventType: ClientReconnected, Source: c},
				Attempts:  attempt,
			})
			return
		}
		c.logger.Warn(c.ctx, "reconnect failed", "attempt", attempt, "error", err.Error())
		var rejected ErrorMessage
		if errors.As(err, &rejected) && rejected.Fatal {
			break
		}
	}

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	c.bus.Publish(&ConnectionEvent{
		BaseEvent: event.BaseEvent{EventType: ClientReconnectFailed, Source: c},
		Attempts:  c.opts.MaxReconnectAttempts,
		Reason:    reason,
	})
}
