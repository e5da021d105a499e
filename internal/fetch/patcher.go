// Package fetch routes outgoing HTTP traffic between the host-mediated
// transport and the regular network stack.
//
// A Patcher swaps a process-wide transport slot (http.DefaultTransport by
// default) for a Router exactly once. Clients that should observe the swap
// use Ambient, which reads the slot on every request.
package fetch

import (
	"net/http"
	"sync"
)

// Patcher installs a wrapper over a transport slot at most once.
type Patcher struct {
	mu      sync.Mutex
	slot    *http.RoundTripper
	real    http.RoundTripper
	applied bool
}

// NewPatcher returns a patcher for slot, or for http.DefaultTransport when
// slot is nil.
func NewPatcher(slot *http.RoundTripper) *Patcher {
	if slot == nil {
		slot = &http.DefaultTransport
	}
	return &Patcher{slot: slot}
}

// Apply replaces the slot with wrap(previous). Only the first call has any
// effect; it reports whether this call installed the wrapper.
func (p *Patcher) Apply(wrap func(real http.RoundTripper) http.RoundTripper) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.applied {
		return false
	}
	real := *p.slot
	if real == nil {
		real = http.DefaultTransport
	}
	p.real = real
	*p.slot = wrap(real)
	p.applied = true
	return true
}

// Applied reports whether the slot has been replaced.
func (p *Patcher) Applied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}

// Real returns the transport the slot held before Apply, or nil before Apply.
func (p *Patcher) Real() http.RoundTripper {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.real
}

// Ambient returns a transport that follows the patcher's slot.
func (p *Patcher) Ambient() http.RoundTripper {
	return Ambient(p.slot)
}

// Ambient returns a RoundTripper that dereferences slot on every request.
func Ambient(slot *http.RoundTripper) http.RoundTripper {
	return ambient{slot: slot}
}

type ambient struct {
	slot *http.RoundTripper
}

func (a ambient) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := *a.slot
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(req)
}
