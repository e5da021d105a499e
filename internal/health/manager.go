package health

import (
	"context"
	"sync"
	"time"
)

// Manager runs a set of checkers for the host's readiness probe.
type Manager struct {
	checkers []Checker
	timeout  time.Duration
	mu       sync.RWMutex
}

// NewManager creates a new health check manager with default 5-second timeout.
func NewManager() *Manager {
	return &Manager{timeout: 5 * time.Second}
}

// WithTimeout sets a custom timeout for health checks.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return m
}

// AddChecker registers a new health checker.
func (m *Manager) AddChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check runs every checker concurrently, each bounded by the manager's
// timeout, and returns results keyed by checker name. A checker that returns
// nil is reported unhealthy.
func (m *Manager) Check(ctx context.Context) map[string]*Result {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	timeout := m.timeout
	m.mu.RUnlock()

	type named struct {
		name   string
		result *Result
	}
	out := make(chan named, len(checkers))
	for _, c := range checkers {
		go func() {
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			out <- named{name: c.Name(), result: run(checkCtx, c)}
		}()
	}

	results := make(map[string]*Result, len(checkers))
	for range checkers {
		r := <-out
		results[r.name] = r.result
	}
	return results
}

func run(ctx context.Context, c Checker) *Result {
	start := time.Now()
	result := c.Check(ctx)
	if result == nil {
		result = Unhealthy("check returned no result")
	}
	if result.Latency == 0 {
		result.Latency = time.Since(start)
	}
	return result
}

// OverallStatus is unhealthy if any check is, else degraded if any check is,
// else healthy.
func OverallStatus(results map[string]*Result) Status {
	hasDegraded := false
	for _, result := range results {
		if result.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if result.Status == StatusDegraded {
			hasDegraded = true
		}
	}

	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
