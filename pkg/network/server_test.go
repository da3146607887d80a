package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/landing"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/replay"
	"github.com/opd-ai/go-lander/pkg/scores"
)

func testEnvConfig() *config.EnvironmentConfig {
	return &config.EnvironmentConfig{
		MaxSessions:                       4,
		ReadTimeout:                       5 * time.Second,
		WriteTimeout:                      2 * time.Second,
		MaxMemoryMB:                       1 << 16,
		ShutdownTimeout:                   2 * time.Second,
		ResourceCheckInterval:             time.Second,
		CircuitBreakerMaxRequests:         1,
		CircuitBreakerInterval:            time.Minute,
		CircuitBreakerTimeout:             time.Second,
		CircuitBreakerMaxConsecutiveFails: 10,
	}
}

type testServer struct {
	*Server
	url   string
	board *scores.Board
}

func startServer(t *testing.T, tweak func(*config.GameConfig, *config.EnvironmentConfig)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Simulation.Seed = 7
	env := testEnvConfig()
	if tweak != nil {
		tweak(cfg, env)
	}
	catalog := config.DefaultCatalog()
	board, err := scores.NewBoard(context.Background(), scores.NewMemoryStore(), catalog, scores.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewBoard failed: %v", err)
	}

	srv := NewServer(cfg, env, catalog, board, logging.Discard())
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return &testServer{Server: srv, url: "ws://" + srv.Addr() + "/ws", board: board}
}

func newTestClient(t *testing.T, ts *testServer, opts ClientOptions) *Client {
	t.Helper()
	c := NewClient(ts.url, ts.env, nil, logging.Discard(), opts)
	t.Cleanup(func() { c.Close() })
	return c
}

func connect(t *testing.T, ts *testServer, hello Hello) *Client {
	t.Helper()
	c := newTestClient(t, ts, ClientOptions{})
	if _, err := c.Connect(context.Background(), hello); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return c
}

func nextFrame(t *testing.T, c *Client, match func(engine.FrameSnapshot) bool) engine.FrameSnapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f := <-c.Frames():
			if match == nil || match(f) {
				return f
			}
		case <-timeout:
			t.Fatal("Timed out waiting for frame")
		}
	}
}

func nextOutcome(t *testing.T, c *Client) OutcomeMessage {
	t.Helper()
	select {
	case o := <-c.Outcomes():
		return o
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for outcome")
	}
	return OutcomeMessage{}
}

func nextError(t *testing.T, c *Client, code string) ErrorMessage {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-c.Errors():
			if e.Code == code {
				return e
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for %s error", code)
		}
	}
}

// dropVehicle launches the vehicle with a single burn and lets it fall.
func dropVehicle(t *testing.T, c *Client) {
	t.Helper()
	if err := c.SendInput(entity.ControlInput{Thrust: true}); err != nil {
		t.Fatalf("SendInput failed: %v", err)
	}
	nextFrame(t, c, func(f engine.FrameSnapshot) bool { return f.State == engine.StateActive })
	if err := c.SendInput(entity.ControlInput{}); err != nil {
		t.Fatalf("SendInput failed: %v", err)
	}
}

func TestServer_HelloWelcome(t *testing.T) {
	ts := startServer(t, nil)
	c := newTestClient(t, ts, ClientOptions{})

	w, err := c.Connect(context.Background(), Hello{Label: "Ada"})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if w.Profile != "classic" {
		t.Errorf("Expected default profile classic, got %s", w.Profile)
	}
	if w.Seed != 7 || w.TickRate != 60 || w.SessionID == "" {
		t.Errorf("Unexpected welcome %+v", w)
	}
	if !slices.Contains(w.Unlocked, "moon") || slices.Contains(w.Unlocked, "mars") {
		t.Errorf("Expected moon open and mars locked, got %v", w.Unlocked)
	}
	if len(w.Profiles) != 11 {
		t.Errorf("Expected 11 profiles, got %d", len(w.Profiles))
	}

	f := nextFrame(t, c, nil)
	if f.State != engine.StatePreLaunch || f.SessionID != w.SessionID {
		t.Errorf("Expected pre-launch frame for %s, got %v for %s", w.SessionID, f.State, f.SessionID)
	}
	if !c.Connected() {
		t.Error("Expected client to report connected")
	}
	waitUntil(t, func() bool { return ts.Sessions() == 1 })
}

func TestServer_RejectsBadHello(t *testing.T) {
	ts := startServer(t, nil)

	tests := []struct {
		name  string
		hello Hello
		code  string
	}{
		{"locked profile", Hello{Profile: "mars"}, CodeLocked},
		{"unknown profile", Hello{Profile: "pluto"}, CodeUnknown},
		{"bad label", Hello{Label: "<script>"}, CodeBadLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, ts, ClientOptions{})
			_, err := c.Connect(context.Background(), tt.hello)

			var rejected ErrorMessage
			if !errors.As(err, &rejected) {
				t.Fatalf("Expected ErrorMessage, got %v", err)
			}
			if rejected.Code != tt.code || !rejected.Fatal {
				t.Errorf("Expected fatal %s, got %+v", tt.code, rejected)
			}
			if c.Connected() {
				t.Error("Expected client to stay disconnected")
			}
		})
	}
}

func TestServer_RejectsNonHelloFirstMessage(t *testing.T) {
	ts := startServer(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	ws.WriteMessage(websocket.TextMessage, []byte(`{"t":"reset"}`))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	env, err := decodeEnvelope(data)
	if err != nil || env.Type != MsgError {
		t.Fatalf("Expected error envelope, got %s (%v)", data, err)
	}
	var msg ErrorMessage
	json.Unmarshal(env.Data, &msg)
	if msg.Code != CodeBadMessage {
		t.Errorf("Expected %s, got %s", CodeBadMessage, msg.Code)
	}
}

func TestServer_SessionLimit(t *testing.T) {
	ts := startServer(t, func(_ *config.GameConfig, env *config.EnvironmentConfig) {
		env.MaxSessions = 1
	})
	connect(t, ts, Hello{})

	c := newTestClient(t, ts, ClientOptions{})
	_, err := c.Connect(context.Background(), Hello{})

	var rejected ErrorMessage
	if !errors.As(err, &rejected) || rejected.Code != CodeFull {
		t.Errorf("Expected %s rejection, got %v", CodeFull, err)
	}
}

func TestServer_RoundReportsOutcomeAndReplay(t *testing.T) {
	replays := t.TempDir()
	ts := startServer(t, func(cfg *config.GameConfig, _ *config.EnvironmentConfig) {
		cfg.Scores.ReplayDir = replays
	})
	c := connect(t, ts, Hello{Label: "Ada"})

	dropVehicle(t, c)
	msg := nextOutcome(t, c)

	if msg.Profile != "classic" {
		t.Errorf("Expected classic outcome, got %s", msg.Profile)
	}
	if msg.Outcome.Result != landing.ResultCrash || msg.Outcome.Score != 0 {
		t.Errorf("Expected a scoreless crash from free fall, got %+v", msg.Outcome)
	}
	if msg.Record.HighScore {
		t.Error("Expected a crash not to enter the table")
	}
	final := nextFrame(t, c, func(f engine.FrameSnapshot) bool { return f.Terminal() })
	if final.Outcome == nil || final.Outcome.Cause != msg.Outcome.Cause {
		t.Errorf("Expected terminal frame to carry the outcome, got %+v", final.Outcome)
	}

	entries, err := os.ReadDir(replays)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one replay bundle, got %d (%v)", len(entries), err)
	}
	res, err := replay.Verify(filepath.Join(replays, entries[0].Name()))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.Match {
		t.Errorf("Expected replay to reproduce the outcome, got %+v", res)
	}
}

func TestServer_SelectAndReset(t *testing.T) {
	ts := startServer(t, nil)
	c := connect(t, ts, Hello{})
	nextFrame(t, c, nil)

	if err := c.Select("mars"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if e := nextError(t, c, CodeLocked); e.Fatal {
		t.Error("Expected locked selection to be non-fatal")
	}

	if err := c.Select("moon"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	f := nextFrame(t, c, func(f engine.FrameSnapshot) bool { return f.Profile == "moon" })
	if f.State != engine.StatePreLaunch || f.Tick != 0 {
		t.Errorf("Expected a fresh moon round, got %v at tick %d", f.State, f.Tick)
	}
}

func TestServer_RateLimit(t *testing.T) {
	ts := startServer(t, nil)
	c := connect(t, ts, Hello{})

	for i := 0; i < 200; i++ {
		if err := c.SendInput(entity.ControlInput{}); err != nil {
			t.Fatalf("SendInput failed: %v", err)
		}
	}
	nextError(t, c, CodeRateLimited)
	if !c.Connected() {
		t.Error("Expected rate limiting to keep the connection open")
	}
}

func TestServer_PingMeasuresLatency(t *testing.T) {
	ts := startServer(t, nil)
	c := newTestClient(t, ts, ClientOptions{PingInterval: 20 * time.Millisecond})
	if _, err := c.Connect(context.Background(), Hello{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitUntil(t, func() bool { return c.Latency() > 0 })
}

func TestServer_HTTPRoutes(t *testing.T) {
	ts := startServer(t, nil)
	base := "http://" + ts.Addr()

	tests := []struct {
		path string
		code int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/scores/classic", http.StatusOK},
		{"/scores/pluto", http.StatusNotFound},
		{"/progress", http.StatusOK},
	}
	for _, tt := range tests {
		resp, err := http.Get(base + tt.path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.code, resp.StatusCode)
		}
	}

	resp, err := http.Get(base + "/scores/classic")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Profile string         `json:"profile"`
		Entries []scores.Entry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(body.Entries) != scores.DefaultTableSize || body.Entries[0].Score != scores.DefaultSeedScore {
		t.Errorf("Expected seeded classic table, got %+v", body.Entries)
	}
}

func TestServer_ReadinessBeforeStart(t *testing.T) {
	cfg := config.DefaultConfig()
	catalog := config.DefaultCatalog()
	board, err := scores.NewBoard(context.Background(), scores.NewMemoryStore(), catalog)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(cfg, testEnvConfig(), catalog, board, logging.Discard())

	report := srv.Health().Run(context.Background())
	if report.Healthy() {
		t.Error("Expected server to be unready before Start")
	}
	if report.Checks["listener"].Status == "healthy" {
		t.Error("Expected listener check to fail before Start")
	}
}

func TestClient_ReconnectEvents(t *testing.T) {
	ts := startServer(t, nil)
	c := newTestClient(t, ts, ClientOptions{MaxReconnectAttempts: 1, ReconnectDelay: 10 * time.Millisecond})

	var mu sync.Mutex
	var seen []event.Type
	c.Bus().SubscribeAll(func(e event.Event) {
		mu.Lock()
		seen = append(seen, e.GetType())
		mu.Unlock()
	}, ClientDisconnected, ClientReconnected, ClientReconnectFailed)

	if _, err := c.Connect(context.Background(), Hello{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Shutdown(ctx)

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(seen, ClientReconnectFailed)
	})
	mu.Lock()
	defer mu.Unlock()
	if seen[0] != ClientDisconnected {
		t.Errorf("Expected disconnect first, got %v", seen)
	}
	if c.Connected() {
		t.Error("Expected client to be disconnected")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
