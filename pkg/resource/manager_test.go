package resource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/logging"
)

func testEnv(maxSessions int) *config.EnvironmentConfig {
	return &config.EnvironmentConfig{
		MaxSessions:           maxSessions,
		MaxMemoryMB:           512,
		ShutdownTimeout:       2 * time.Second,
		ResourceCheckInterval: 20 * time.Millisecond,
	}
}

func newTestManager(maxSessions int) *Manager {
	return NewManager(testEnv(maxSessions), logging.Discard())
}

func TestNewManager(t *testing.T) {
	m := newTestManager(4)
	defer m.Shutdown(context.Background())

	if m.maxSessions != 4 {
		t.Errorf("Expected max sessions 4, got %d", m.maxSessions)
	}
	if m.maxMemoryMB != 512 {
		t.Errorf("Expected max memory 512, got %d", m.maxMemoryMB)
	}
	if m.Active() != 0 {
		t.Errorf("Expected no active sessions, got %d", m.Active())
	}
}

func TestManager_AdmitUpToLimit(t *testing.T) {
	m := newTestManager(2)
	defer m.Shutdown(context.Background())

	release := make(chan struct{})
	var started sync.WaitGroup
	for i := 0; i < 2; i++ {
		started.Add(1)
		err := m.Admit(context.Background(), "pilot", func(ctx context.Context) {
			started.Done()
			<-release
		})
		if err != nil {
			t.Fatalf("Expected admission %d to succeed, got %v", i, err)
		}
	}
	started.Wait()

	err := m.Admit(context.Background(), "extra", func(context.Context) {})
	if !errors.Is(err, ErrAtCapacity) {
		t.Errorf("Expected ErrAtCapacity, got %v", err)
	}
	if m.Active() != 2 {
		t.Errorf("Expected 2 active sessions, got %d", m.Active())
	}

	close(release)
	waitFor(t, func() bool { return m.Active() == 0 })

	stats := m.Stats()
	if stats.Admitted != 2 || stats.Rejected != 1 {
		t.Errorf("Expected 2 admitted and 1 rejected, got %+v", stats)
	}
}

func TestManager_PanicReleasesSlot(t *testing.T) {
	m := newTestManager(1)
	defer m.Shutdown(context.Background())

	err := m.Admit(context.Background(), "boom", func(context.Context) {
		panic("thruster exploded")
	})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	waitFor(t, func() bool { return m.Active() == 0 })

	if err := m.Admit(context.Background(), "next", func(context.Context) {}); err != nil {
		t.Errorf("Expected slot to be free after panic, got %v", err)
	}
}

func TestManager_RejectsUnderMemoryPressure(t *testing.T) {
	m := newTestManager(4)
	defer m.Shutdown(context.Background())
	m.readMem = func() uint64 { return 1024 << 20 }

	if err := m.CheckMemory(); err == nil {
		t.Error("Expected memory check to fail")
	}
	if err := m.Admit(context.Background(), "pilot", func(context.Context) {}); !errors.Is(err, ErrAtCapacity) {
		t.Errorf("Expected ErrAtCapacity under memory pressure, got %v", err)
	}

	m.readMem = func() uint64 { return 10 << 20 }
	if err := m.CheckMemory(); err != nil {
		t.Errorf("Expected memory check to pass, got %v", err)
	}
	if m.Stats().LastCheck.IsZero() {
		t.Error("Expected last check time to be recorded")
	}
}

func TestManager_StartAndShutdown(t *testing.T) {
	m := newTestManager(2)

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(); err == nil {
		t.Error("Expected error on second start")
	}
	waitFor(t, func() bool { return !m.Stats().LastCheck.IsZero() })

	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected second shutdown to be a no-op, got %v", err)
	}
	if err := m.Admit(context.Background(), "late", func(context.Context) {}); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Expected ErrShuttingDown, got %v", err)
	}
	if err := m.Start(); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Expected restart to be refused, got %v", err)
	}
}

func TestManager_ShutdownCancelsSessions(t *testing.T) {
	m := newTestManager(2)

	cancelled := make(chan struct{})
	err := m.Admit(context.Background(), "pilot", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	select {
	case <-cancelled:
	default:
		t.Error("Expected session context to be cancelled")
	}
}

func TestManager_ShutdownTimeout(t *testing.T) {
	env := testEnv(1)
	env.ShutdownTimeout = 100 * time.Millisecond
	m := NewManager(env, logging.Discard())

	stop := make(chan struct{})
	defer close(stop)
	err := m.Admit(context.Background(), "stubborn", func(context.Context) {
		<-stop
	})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	start := time.Now()
	err = m.Shutdown(context.Background())
	if err == nil {
		t.Error("Expected shutdown to time out")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Shutdown returned too early: %v", elapsed)
	}
}

func TestManager_ConcurrentAdmit(t *testing.T) {
	m := newTestManager(10)
	defer m.Shutdown(context.Background())

	release := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Admit(context.Background(), "pilot", func(context.Context) { <-release }) == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 10 {
		t.Errorf("Expected exactly 10 admissions, got %d", admitted)
	}
	close(release)
	waitFor(t, func() bool { return m.Active() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func BenchmarkManager_Admit(b *testing.B) {
	env := testEnv(b.N + 1)
	m := NewManager(env, logging.Discard())
	defer m.Shutdown(context.Background())

	for i := 0; i < b.N; i++ {
		_ = m.Admit(context.Background(), "bench", func(context.Context) {})
	}
}
