package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/logging"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", testEnvConfig(), nil, logging.Discard(), DefaultClientOptions())
	defer c.Close()

	if c.Connected() {
		t.Error("Expected new client to be disconnected")
	}
	if c.Bus() == nil {
		t.Error("Expected a default event bus")
	}
	if c.Latency() != 0 {
		t.Errorf("Expected zero latency, got %v", c.Latency())
	}
	if opts := DefaultClientOptions(); opts.MaxReconnectAttempts != 5 || opts.PingInterval != 5*time.Second {
		t.Errorf("Unexpected default options %+v", opts)
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", testEnvConfig(), nil, logging.Discard(), ClientOptions{})
	defer c.Close()

	tests := map[string]func() error{
		"input":  func() error { return c.SendInput(entity.ControlInput{Thrust: true}) },
		"reset":  c.Reset,
		"select": func() error { return c.Select("moon") },
	}
	for name, send := range tests {
		if err := send(); !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s: expected ErrNotConnected, got %v", name, err)
		}
	}
}

func TestClient_DialFailureTripsBreaker(t *testing.T) {
	env := testEnvConfig()
	env.CircuitBreakerMaxConsecutiveFails = 2
	env.ReadTimeout = 200 * time.Millisecond
	c := NewClient("ws://127.0.0.1:1/ws", env, nil, logging.Discard(), ClientOptions{})
	defer c.Close()

	for i := 0; i < 2; i++ {
		if _, err := c.Connect(context.Background(), Hello{}); err == nil {
			t.Fatal("Expected dial to fail")
		}
	}
	if _, err := c.Connect(context.Background(), Hello{}); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen after repeated failures, got %v", err)
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", testEnvConfig(), nil, logging.Discard(), ClientOptions{})
	c.Close()

	if _, err := c.Connect(context.Background(), Hello{}); err == nil {
		t.Error("Expected closed client to refuse to connect")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
}

func TestClient_FramesDropOldest(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", testEnvConfig(), nil, logging.Discard(), ClientOptions{})
	defer c.Close()

	total := cap(c.frames) + 5
	for i := 0; i < total; i++ {
		c.pushFrame(engine.FrameSnapshot{Tick: uint64(i)})
	}

	first := <-c.Frames()
	if first.Tick != 5 {
		t.Errorf("Expected oldest frames dropped, first tick %d", first.Tick)
	}
}

func TestServer_DropsSilentConnection(t *testing.T) {
	ts := startServer(t, func(_ *config.GameConfig, env *config.EnvironmentConfig) {
		env.ReadTimeout = 100 * time.Millisecond
	})

	ws, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Expected an error envelope before close, got %v", err)
	}
	env, err := decodeEnvelope(data)
	if err != nil || env.Type != MsgError {
		t.Errorf("Expected error envelope, got %s", data)
	}
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("Expected server to close a connection that never said hello")
	}
}
