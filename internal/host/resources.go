package host

import (
	"net/http"
	"sync"
	"time"
)

// DefaultResourceTTL is how long an unclaimed HTTP plugin request or response
// body is kept.
const DefaultResourceTTL = 2 * time.Minute

type resource[T any] struct {
	value   T
	created time.Time
}

// resourceTable holds HTTP plugin requests between fetch and fetch_send, and
// response bodies between fetch_send and fetch_read_body. Every entry is
// consumed at most once. Entries older than ttl are dropped on the next add.
type resourceTable struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	next      uint64
	requests  map[uint64]resource[*http.Request]
	responses map[uint64]resource[[]byte]
}

func newResourceTable(ttl time.Duration) *resourceTable {
	if ttl <= 0 {
		ttl = DefaultResourceTTL
	}
	return &resourceTable{
		ttl:       ttl,
		now:       time.Now,
		requests:  make(map[uint64]resource[*http.Request]),
		responses: make(map[uint64]resource[[]byte]),
	}
}

func (t *resourceTable) addRequest(req *http.Request) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.sweepLocked()
	t.next++
	t.requests[t.next] = resource[*http.Request]{value: req, created: now}
	return t.next
}

func (t *resourceTable) takeRequest(rid uint64) (*http.Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.requests[rid]
	delete(t.requests, rid)
	if ok && t.expired(r.created) {
		return nil, false
	}
	return r.value, ok
}

func (t *resourceTable) addBody(body []byte) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.sweepLocked()
	t.next++
	t.responses[t.next] = resource[[]byte]{value: body, created: now}
	return t.next
}

func (t *resourceTable) takeBody(rid uint64) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.responses[rid]
	delete(t.responses, rid)
	if ok && t.expired(r.created) {
		return nil, false
	}
	return r.value, ok
}

func (t *resourceTable) expired(created time.Time) bool {
	return t.now().Sub(created) > t.ttl
}

// sweepLocked drops expired entries and returns the current time.
func (t *resourceTable) sweepLocked() time.Time {
	now := t.now()
	for rid, r := range t.requests {
		if now.Sub(r.created) > t.ttl {
			delete(t.requests, rid)
		}
	}
	for rid, r := range t.responses {
		if now.Sub(r.created) > t.ttl {
			delete(t.responses, rid)
		}
	}
	return now
}

func (t *resourceTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests) + len(t.responses)
}
