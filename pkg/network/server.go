package network

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/health"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/resource"
	"github.com/opd-ai/go-lander/pkg/scores"
	"github.com/opd-ai/go-lander/pkg/validation"
)

// DefaultLabel names pilots that did not send one.
const DefaultLabel = "Pilot"

const sendBuffer = 64

// Server hosts one engine session per websocket connection.
type Server struct {
	cfg       *config.GameConfig
	env       *config.EnvironmentConfig
	catalog   *config.Catalog
	board     *scores.Board
	resources *resource.Manager
	validator *validation.MessageValidator
	health    *health.Checker
	logger    *logging.Logger
	upgrader  websocket.Upgrader
	mux       *http.ServeMux

	mu       sync.RWMutex
	conns    map[string]*conn
	listener net.Listener
	srv      *http.Server
	running  bool

	seedMu sync.Mutex
	seeds  *rand.Rand
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithReadinessCheck adds a check to /health/ready.
func WithReadinessCheck(c health.Check) ServerOption {
	return func(s *Server) { s.health.AddCheck(c) }
}

// NewServer wires a server around a catalog and score board.
func NewServer(cfg *config.GameConfig, env *config.EnvironmentConfig, catalog *config.Catalog, board *scores.Board, logger *logging.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.NewLogger()
	}
	logger = logger.With("component", "server")

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Server{
		cfg:       cfg,
		env:       env,
		catalog:   catalog,
		board:     board,
		resources: resource.NewManager(env, logger),
		validator: validation.NewMessageValidator(),
		health:    health.NewChecker(),
		logger:    logger,
		conns:     make(map[string]*conn),
		seeds:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     sameOrigin,
	}

	s.health.AddCheck(health.NewListenerCheck(s.Addr))
	s.health.AddCheck(health.NewCatalogCheck(catalog, cfg.DefaultProfile))
	s.health.AddCheck(resource.NewCapacityCheck(s.resources))
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /ws", s.handleWebsocket)
	s.mux.HandleFunc("GET /health/live", s.health.LivenessHandler)
	s.mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler)
	s.mux.HandleFunc("GET /scores/{profile}", s.handleScores)
	s.mux.HandleFunc("GET /progress", s.handleProgress)
	return s
}

// sameOrigin accepts non-browser clients and browsers on the serving host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// Handler returns the server's HTTP routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Health returns the readiness checker.
func (s *Server) Health() *health.Checker {
	return s.health
}

// Start listens on address and serves in the background.
func (s *Server) Start(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return logging.WrapError(err, "failed to listen on %s", address)
	}
	if err := s.resources.Start(); err != nil {
		ln.Close()
		return err
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: s.env.ReadTimeout,
	}
	s.running = true
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "http server stopped", err)
		}
	}()

	s.logger.Info(context.Background(), "server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listening address, or "" when not listening.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil || !s.running {
		return ""
	}
	return s.listener.Addr().String()
}

// Sessions returns the number of connected players.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Shutdown stops accepting connections, ends every session and waits for
// them up to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.srv
	s.running = false
	s.mu.Unlock()

	var firstErr error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := s.resources.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	s.validator.Close()
	s.logger.Info(ctx, "server stopped")
	return firstErr
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	c := newConn(s, ws, r.RemoteAddr)
	ctx := logging.WithCorrelationID(context.Background(), c.id)
	if err := s.resources.Admit(ctx, c.id, c.serve); err != nil {
		code := CodeFull
		if errors.Is(err, resource.ErrShuttingDown) {
			code = CodeInternal
		}
		c.reject(ErrorMessage{Code: code, Message: err.Error(), Fatal: true})
		return
	}
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	profile := r.PathValue("profile")
	if _, err := s.catalog.Lookup(profile); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorMessage{Code: CodeUnknown, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Profile string         `json:"profile"`
		Entries []scores.Entry `json:"entries"`
	}{profile, s.board.Table(profile)})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p := s.board.Progress()
	writeJSON(w, http.StatusOK, struct {
		Unlocked   int         `json:"unlocked"`
		Stars      map[int]int `json:"stars"`
		TotalStars int         `json:"totalStars"`
	}{p.Unlocked, p.Stars, p.TotalStars()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) register(c *conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) unregister(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.validator.Forget(c.id)
}

func (s *Server) nextSeed() uint64 {
	if seed := s.cfg.Simulation.Seed; seed != 0 {
		return seed
	}
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	return s.seeds.Uint64()
}

// unlockedProfiles lists the profiles the board lets a player start.
func (s *Server) unlockedProfiles() []string {
	var out []string
	for _, id := range s.catalog.IDs() {
		if s.board.IsUnlocked(id) {
			out = append(out, id)
		}
	}
	return out
}

func newClientID() string {
	return uuid.NewString()
}
