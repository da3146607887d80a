package resource

import (
	"context"
	"fmt"
)

// CapacityCheck is a readiness check that fails while the manager cannot
// take another session.
type CapacityCheck struct {
	manager *Manager
}

// NewCapacityCheck wraps m for the health checker.
func NewCapacityCheck(m *Manager) *CapacityCheck {
	return &CapacityCheck{manager: m}
}

// Name returns "sessions".
func (c *CapacityCheck) Name() string {
	return "sessions"
}

// Check reports memory pressure and a full session table.
func (c *CapacityCheck) Check(ctx context.Context) error {
	stats := c.manager.Stats()
	if stats.MaxMemoryMB > 0 && stats.MemoryUsageMB > stats.MaxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", stats.MemoryUsageMB, stats.MaxMemoryMB)
	}
	if stats.ActiveSessions >= stats.MaxSessions {
		return fmt.Errorf("all %d session slots in use", stats.MaxSessions)
	}
	return nil
}
