// Package health serves liveness and readiness probes for the lander server.
// Readiness runs every registered Check; liveness only proves the process
// answers HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/go-lander/pkg/config"
)

// Status values reported by the probes.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds a single readiness run.
const DefaultCheckTimeout = 5 * time.Second

// Check is one readiness condition.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// Report is the aggregated readiness result.
type Report struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentReport `json:"checks"`
}

// ComponentReport is the result of one Check.
type ComponentReport struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Checker holds the registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: DefaultCheckTimeout,
	}
}

// AddCheck registers c, replacing any check with the same name.
func (c *Checker) AddCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name()] = check
}

// RemoveCheck drops the named check.
func (c *Checker) RemoveCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check and aggregates the result.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make([]Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	report := Report{
		Status: StatusHealthy,
		Checks: make(map[string]ComponentReport, len(checks)),
	}
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		cr := ComponentReport{Status: StatusHealthy, Duration: time.Since(start).String()}
		if err != nil {
			report.Status = StatusUnhealthy
			cr.Status = StatusUnhealthy
			cr.Message = err.Error()
		}
		report.Checks[check.Name()] = cr
	}
	return report
}

// LivenessHandler answers 200 while the process can serve requests.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler answers 200 when every check passes and 503 otherwise.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	report := c.Run(ctx)
	code := http.StatusOK
	if !report.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Func adapts a function to a Check.
func Func(name string, fn func(ctx context.Context) error) Check {
	return funcCheck{name: name, fn: fn}
}

type funcCheck struct {
	name string
	fn   func(ctx context.Context) error
}

func (f funcCheck) Name() string                    { return f.name }
func (f funcCheck) Check(ctx context.Context) error { return f.fn(ctx) }

// Pinger is anything that can prove a backing connection is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck verifies the score store answers.
type StoreCheck struct {
	store Pinger
}

// NewStoreCheck wraps a pingable score store.
func NewStoreCheck(store Pinger) *StoreCheck {
	return &StoreCheck{store: store}
}

// Name returns "score_store".
func (s *StoreCheck) Name() string {
	return "score_store"
}

// Check pings the store.
func (s *StoreCheck) Check(ctx context.Context) error {
	if s.store == nil {
		return errors.New("score store is not configured")
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("score store unreachable: %w", err)
	}
	return nil
}

// CatalogCheck verifies that the default profile resolves.
type CatalogCheck struct {
	catalog        *config.Catalog
	defaultProfile string
}

// NewCatalogCheck checks that defaultProfile exists in catalog.
func NewCatalogCheck(catalog *config.Catalog, defaultProfile string) *CatalogCheck {
	return &CatalogCheck{catalog: catalog, defaultProfile: defaultProfile}
}

// Name returns "catalog".
func (c *CatalogCheck) Name() string {
	return "catalog"
}

// Check looks up the default profile.
func (c *CatalogCheck) Check(ctx context.Context) error {
	if c.catalog == nil {
		return errors.New("profile catalog is not loaded")
	}
	if _, err := c.catalog.Lookup(c.defaultProfile); err != nil {
		return fmt.Errorf("default profile: %w", err)
	}
	return nil
}

// ListenerCheck verifies the server is accepting connections.
type ListenerCheck struct {
	addr func() string
}

// NewListenerCheck reports unhealthy while addr returns "".
func NewListenerCheck(addr func() string) *ListenerCheck {
	return &ListenerCheck{addr: addr}
}

// Name returns "listener".
func (l *ListenerCheck) Name() string {
	return "listener"
}

// Check fails until the listener has an address.
func (l *ListenerCheck) Check(ctx context.Context) error {
	if l.addr() == "" {
		return errors.New("listener is not active")
	}
	return nil
}
