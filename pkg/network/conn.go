package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/replay"
	"github.com/opd-ai/go-lander/pkg/scores"
	"github.com/opd-ai/go-lander/pkg/validation"
)

type outbound struct {
	kind int
	data []byte
}

// conn is one player. The serve goroutine owns the session fields; readPump
// and writePump only touch the socket and the channels.
type conn struct {
	srv      *Server
	ws       *websocket.Conn
	id       string
	remote   string
	base     *logging.Logger
	logger   *logging.Logger
	send     chan outbound
	commands chan Envelope
	cancel   context.CancelFunc

	session  *engine.Session
	loop     *engine.Loop
	input    entity.ControlInput
	label    string
	recorder *replay.Writer
	reported bool
	frames   int
}

func newConn(s *Server, ws *websocket.Conn, remote string) *conn {
	id := newClientID()
	base := s.logger.With("conn_id", id, "remote", remote)
	return &conn{
		srv:      s,
		ws:       ws,
		id:       id,
		remote:   remote,
		base:     base,
		logger:   base,
		send:     make(chan outbound, sendBuffer),
		commands: make(chan Envelope, sendBuffer),
	}
}

func protocolError(code string, err error) ErrorMessage {
	return ErrorMessage{Code: code, Message: err.Error()}
}

// reject reports a fatal error and closes the socket. It writes directly,
// so it must only be used before writePump starts.
func (c *conn) reject(msg ErrorMessage) {
	msg.Fatal = true
	defer c.ws.Close()
	data, err := encodeEnvelope(MsgError, msg)
	if err != nil {
		return
	}
	deadline := time.Now().Add(c.srv.env.WriteTimeout)
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg.Code), deadline)
}

func (c *conn) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	c.srv.register(c)
	defer c.srv.unregister(c)

	if msg, ok := c.open(ctx); !ok {
		c.logger.Info(ctx, "session refused", "code", msg.Code, "reason", msg.Message)
		c.reject(msg)
		return
	}
	defer c.stopRecording(ctx)

	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump(ctx)
	}()
	go c.readPump(ctx)

	c.logger.Info(ctx, "session opened", "label", c.label)
	c.run(ctx)

	cancel()
	<-written
	c.ws.Close()
	c.logger.Info(ctx, "session closed")
}

// open reads the hello, creates the session and queues the welcome.
func (c *conn) open(ctx context.Context) (ErrorMessage, bool) {
	c.ws.SetReadLimit(validation.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.srv.env.ReadTimeout))

	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return protocolError(CodeBadMessage, fmt.Errorf("no hello: %w", err)), false
	}
	if kind != websocket.TextMessage {
		return protocolError(CodeBadMessage, errors.New("hello must be a text message")), false
	}
	if err := c.srv.validator.ValidateMessage(data, c.id); err != nil {
		return protocolError(CodeBadMessage, err), false
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return protocolError(CodeBadMessage, err), false
	}
	if env.Type != MsgHello {
		return protocolError(CodeBadMessage, fmt.Errorf("expected hello, got %s", env.Type)), false
	}
	var hello Hello
	if err := decodePayload(env, &hello); err != nil {
		return protocolError(CodeBadMessage, err), false
	}

	c.label = DefaultLabel
	if hello.Label != "" {
		label, err := validation.ValidateLabel(hello.Label)
		if err != nil {
			return protocolError(CodeBadLabel, err), false
		}
		c.label = label
	}

	profile := hello.Profile
	if profile == "" {
		profile = c.srv.cfg.DefaultProfile
	}
	if msg, ok := c.checkProfile(profile); !ok {
		return msg, false
	}

	c.session, err = engine.NewSession(c.srv.cfg, c.srv.catalog, engine.Options{
		ID:      c.id,
		Profile: profile,
		Seed:    c.srv.nextSeed(),
	})
	if err != nil {
		return protocolError(CodeInternal, err), false
	}
	c.loop = engine.NewLoop(c.session, c.srv.cfg.Simulation.TickRate)
	c.logger = c.base.ForSession(c.session.ID(), profile)

	welcome := Welcome{
		SessionID: c.session.ID(),
		Profile:   profile,
		Seed:      c.session.Seed(),
		TickRate:  c.srv.cfg.Simulation.TickRate,
		Profiles:  c.srv.catalog.IDs(),
		Unlocked:  c.srv.unlockedProfiles(),
	}
	if err := c.enqueue(ctx, MsgWelcome, welcome); err != nil {
		return protocolError(CodeInternal, err), false
	}
	c.startRecording(ctx)
	c.pushFrame(c.session.Snapshot())
	return ErrorMessage{}, true
}

func (c *conn) checkProfile(profile string) (ErrorMessage, bool) {
	if err := validation.ValidateProfileID(profile); err != nil {
		return protocolError(CodeUnknown, err), false
	}
	if _, err := c.srv.catalog.Lookup(profile); err != nil {
		return protocolError(CodeUnknown, err), false
	}
	if !c.srv.board.IsUnlocked(profile) {
		return protocolError(CodeLocked, fmt.Errorf("profile %s is locked", profile)), false
	}
	return ErrorMessage{}, true
}

// run steps the session at the configured rate until ctx ends.
func (c *conn) run(ctx context.Context) {
	ticker := time.NewTicker(c.loop.Step())
	defer ticker.Stop()

	every := c.srv.cfg.NetworkConfig.SnapshotEvery
	if every < 1 {
		every = 1
	}
	poll := func() entity.ControlInput { return c.input }
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.commands:
			c.handleCommand(ctx, env)
		case now := <-ticker.C:
			snap, steps := c.loop.Advance(now.Sub(last), poll)
			last = now
			if steps == 0 || c.reported {
				continue
			}
			c.frames++
			if snap.Terminal() {
				c.pushFrame(snap)
				c.reportOutcome(ctx, snap)
				continue
			}
			if c.frames%every == 0 {
				c.pushFrame(snap)
			}
		}
	}
}

func (c *conn) handleCommand(ctx context.Context, env Envelope) {
	switch env.Type {
	case MsgInput:
		var in entity.ControlInput
		if err := decodePayload(env, &in); err != nil {
			c.sendError(ctx, protocolError(CodeBadMessage, err))
			return
		}
		c.input = validation.SanitizeControl(in)

	case MsgReset:
		c.stopRecording(ctx)
		snap := c.session.Reset()
		c.input = entity.ControlInput{}
		c.reported = false
		c.frames = 0
		c.logger = c.base.ForSession(c.id, snap.Profile)
		c.startRecording(ctx)
		c.pushFrame(snap)

	case MsgSelect:
		var sel Select
		if err := decodePayload(env, &sel); err != nil {
			c.sendError(ctx, protocolError(CodeBadMessage, err))
			return
		}
		if msg, ok := c.checkProfile(sel.Profile); !ok {
			c.sendError(ctx, msg)
			return
		}
		if err := c.session.SelectProfile(sel.Profile); err != nil {
			c.sendError(ctx, protocolError(CodeUnknown, err))
		}
	}
}

func (c *conn) reportOutcome(ctx context.Context, snap engine.FrameSnapshot) {
	c.reported = true
	c.stopRecording(ctx)

	o := snap.Outcome.Clone()
	rec, err := c.srv.board.RecordOutcome(ctx, snap.Profile, o.Score, o.Stars, c.label)
	if err != nil {
		c.logger.Error(ctx, "failed to record outcome", err, "score", o.Score)
		code := CodeInternal
		if errors.Is(err, scores.ErrInvalidLabel) {
			code = CodeBadLabel
		}
		c.sendError(ctx, protocolError(code, err))
	}
	c.logger.Info(ctx, "round finished",
		"result", string(o.Result),
		"cause", string(o.Cause),
		"score", o.Score,
		"stars", o.Stars,
		"rank", rec.Rank,
	)
	c.enqueue(ctx, MsgOutcome, OutcomeMessage{Profile: snap.Profile, Outcome: o, Record: rec})
}

func (c *conn) startRecording(ctx context.Context) {
	dir := c.srv.cfg.Scores.ReplayDir
	if dir == "" {
		return
	}
	w, err := replay.NewWriter(dir, c.session, time.Now)
	if err != nil {
		c.logger.Warn(ctx, "replay recording disabled for round", "error", err.Error())
		return
	}
	c.recorder = w
}

func (c *conn) stopRecording(ctx context.Context) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Close(); err != nil {
		c.logger.Warn(ctx, "replay bundle incomplete", "dir", c.recorder.Dir(), "error", err.Error())
	} else {
		c.logger.Debug(ctx, "replay saved", "dir", c.recorder.Dir())
	}
	c.recorder = nil
}

// pushFrame queues a snapshot, dropping it when the client is behind.
func (c *conn) pushFrame(snap engine.FrameSnapshot) {
	data, err := EncodeFrame(snap)
	if err != nil {
		c.logger.Error(context.Background(), "failed to encode frame", err)
		return
	}
	select {
	case c.send <- outbound{kind: websocket.BinaryMessage, data: data}:
	default:
	}
}

func (c *conn) enqueue(ctx context.Context, t MessageType, payload any) error {
	data, err := encodeEnvelope(t, payload)
	if err != nil {
		return err
	}
	return c.enqueueRaw(ctx, data)
}

func (c *conn) enqueueRaw(ctx context.Context, data []byte) error {
	select {
	case c.send <- outbound{kind: websocket.TextMessage, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) sendError(ctx context.Context, msg ErrorMessage) {
	c.enqueue(ctx, MsgError, msg)
}

func (c *conn) readPump(ctx context.Context) {
	defer c.cancel()

	timeout := c.srv.env.ReadTimeout
	c.ws.SetReadDeadline(time.Now().Add(timeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(timeout))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug(ctx, "connection lost", "error", err.Error())
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(timeout))

		if kind != websocket.TextMessage {
			c.sendError(ctx, protocolError(CodeBadMessage, errors.New("binary messages are not accepted")))
			continue
		}
		if err := c.srv.validator.ValidateMessage(data, c.id); err != nil {
			code := CodeBadMessage
			if errors.Is(err, validation.ErrRateLimited) {
				code = CodeRateLimited
			}
			c.sendError(ctx, protocolError(code, err))
			continue
		}
		env, err := decodeEnvelope(data)
		if err != nil {
			c.sendError(ctx, protocolError(CodeBadMessage, err))
			continue
		}

		switch env.Type {
		case MsgPing:
			pong, err := encodeEnvelope(MsgPong, env.Data)
			if err == nil {
				c.enqueueRaw(ctx, pong)
			}
		case MsgInput, MsgReset, MsgSelect:
			select {
			case c.commands <- env:
			case <-ctx.Done():
				return
			}
		default:
			c.sendError(ctx, protocolError(CodeBadMessage, fmt.Errorf("unexpected message type %q", env.Type)))
		}
	}
}

func (c *conn) writePump(ctx context.Context) {
	timeout := c.srv.env.WriteTimeout
	ping := time.NewTicker(c.srv.env.ReadTimeout * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.ws.WriteMessage(msg.kind, msg.data); err != nil {
				c.logger.Debug(ctx, "write failed", "error", err.Error())
				c.cancel()
				return
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				c.cancel()
				return
			}
		case <-ctx.Done():
			c.flush(timeout)
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(timeout))
			return
		}
	}
}

// flush writes whatever is already queued.
func (c *conn) flush(timeout time.Duration) {
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.ws.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}
		default:
			return
		}
	}
}
