// Package health runs the host's dependency checks and answers liveness and
// readiness probes.
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency of the host.
type Checker interface {
	// Name is lowercase with hyphens, e.g. "store" or "frontend-api".
	Name() string

	// Check should respect the context deadline and return quickly.
	Check(ctx context.Context) *Result
}

// Status represents the health check status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result represents the result of a health check.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
}

// NewResult creates a new health check result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail to the result and returns the result for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// Healthy creates a healthy result with the given message.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result with the given message.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result with the given message.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}

// CheckFunc adapts a function to a Checker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) *Result
}

// Name implements Checker.
func (c CheckFunc) Name() string { return c.CheckName }

// Check implements Checker.
func (c CheckFunc) Check(ctx context.Context) *Result { return c.Fn(ctx) }

// Ping builds a checker that is unhealthy whenever ping fails.
func Ping(name string, ping func(ctx context.Context) error) Checker {
	return CheckFunc{CheckName: name, Fn: func(ctx context.Context) *Result {
		if err := ping(ctx); err != nil {
			return Unhealthy(err.Error())
		}
		return Healthy("ok")
	}}
}
