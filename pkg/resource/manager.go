// Package resource bounds the number of concurrently running sessions and
// watches process memory so the server degrades by refusing players instead
// of falling over.
package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/logging"
)

var (
	// ErrAtCapacity is returned when every session slot is taken.
	ErrAtCapacity = errors.New("session capacity reached")
	// ErrShuttingDown is returned once Shutdown has begun.
	ErrShuttingDown = errors.New("resource manager shutting down")
)

// Manager admits session goroutines up to a fixed limit and tracks memory.
type Manager struct {
	maxSessions     int64
	maxMemoryMB     int64
	shutdownTimeout time.Duration
	checkInterval   time.Duration

	active    atomic.Int64
	admitted  atomic.Int64
	rejected  atomic.Int64
	memoryMB  atomic.Int64
	lastCheck atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	mu       sync.Mutex
	running  bool
	stopping bool
	logger   *logging.Logger
	readMem  func() uint64
}

// NewManager creates a manager from the environment limits.
func NewManager(env *config.EnvironmentConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		maxSessions:     int64(env.MaxSessions),
		maxMemoryMB:     int64(env.MaxMemoryMB),
		shutdownTimeout: env.ShutdownTimeout,
		checkInterval:   env.ResourceCheckInterval,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
		logger:          logger.With("component", "resource"),
		readMem:         heapAlloc,
	}
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

// Start begins periodic memory checks.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("resource manager already running")
	}
	if m.stopping {
		return ErrShuttingDown
	}
	m.running = true
	go m.monitor()

	m.logger.Info(m.ctx, "resource manager started",
		"max_sessions", m.maxSessions,
		"max_memory_mb", m.maxMemoryMB,
		"check_interval", m.checkInterval,
	)
	return nil
}

// Admit runs fn in a tracked goroutine when a session slot is free. The
// context passed to fn is cancelled by Shutdown or when ctx is done.
func (m *Manager) Admit(ctx context.Context, name string, fn func(context.Context)) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	if m.active.Load() >= m.maxSessions {
		m.mu.Unlock()
		m.rejected.Add(1)
		m.logger.Warn(ctx, "session rejected", "name", name, "limit", m.maxSessions)
		return fmt.Errorf("%w: %d/%d", ErrAtCapacity, m.maxSessions, m.maxSessions)
	}
	if m.overMemory() {
		m.mu.Unlock()
		m.rejected.Add(1)
		m.logger.Warn(ctx, "session rejected under memory pressure", "name", name, "memory_mb", m.memoryMB.Load())
		return fmt.Errorf("%w: memory %dMB over %dMB", ErrAtCapacity, m.memoryMB.Load(), m.maxMemoryMB)
	}
	m.active.Add(1)
	m.admitted.Add(1)
	m.wg.Add(1)
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)

	go func() {
		defer m.wg.Done()
		defer m.active.Add(-1)
		defer stop()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error(runCtx, "session panicked", fmt.Errorf("panic: %v", r), "name", name)
			}
		}()
		fn(runCtx)
	}()
	return nil
}

func (m *Manager) overMemory() bool {
	return m.maxMemoryMB > 0 && m.memoryMB.Load() > m.maxMemoryMB
}

// CheckMemory samples heap usage and reports whether it is over the limit.
func (m *Manager) CheckMemory() error {
	mb := int64(m.readMem() / 1024 / 1024)
	m.memoryMB.Store(mb)
	m.lastCheck.Store(time.Now().UnixNano())
	if m.maxMemoryMB > 0 && mb > m.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", mb, m.maxMemoryMB)
	}
	return nil
}

// Active returns the number of running sessions.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	ActiveSessions int64     `json:"active_sessions"`
	MaxSessions    int64     `json:"max_sessions"`
	Admitted       int64     `json:"admitted"`
	Rejected       int64     `json:"rejected"`
	MemoryUsageMB  int64     `json:"memory_usage_mb"`
	MaxMemoryMB    int64     `json:"max_memory_mb"`
	LastCheck      time.Time `json:"last_check"`
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	s := Stats{
		ActiveSessions: m.active.Load(),
		MaxSessions:    m.maxSessions,
		Admitted:       m.admitted.Load(),
		Rejected:       m.rejected.Load(),
		MemoryUsageMB:  m.memoryMB.Load(),
		MaxMemoryMB:    m.maxMemoryMB,
	}
	if ns := m.lastCheck.Load(); ns > 0 {
		s.LastCheck = time.Unix(0, ns)
	}
	return s
}

// Shutdown refuses new sessions, cancels running ones and waits for them to
// return, up to the configured timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	m.logger.Info(ctx, "shutting down sessions", "active", m.Active())
	m.cancel()

	ctx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()

	if wasRunning {
		select {
		case <-m.done:
		case <-ctx.Done():
			m.logger.Warn(ctx, "monitor did not stop in time")
		}
	}

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		m.logger.Info(ctx, "all sessions finished")
		return nil
	case <-ctx.Done():
		remaining := m.Active()
		m.logger.Warn(ctx, "shutdown timed out", "remaining", remaining)
		return fmt.Errorf("shutdown timeout: %d sessions still running", remaining)
	}
}

func (m *Manager) monitor() {
	defer close(m.done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.CheckMemory(); err != nil {
				m.logger.Error(m.ctx, "memory limit exceeded", err, "active_sessions", m.Active())
			}
			m.logger.Debug(m.ctx, "resource check",
				"active_sessions", m.Active(),
				"memory_mb", m.memoryMB.Load(),
			)
		case <-m.ctx.Done():
			return
		}
	}
}
