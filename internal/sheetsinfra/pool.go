package sheetsinfra

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// session is one pooled API handle. Each session owns its transport so
// the pool size bounds concurrent outstanding connections.
type session struct {
	id   int
	http *http.Client
}

// sessionPool bounds the number of concurrent API sessions. Handles are
// created lazily up to max and then recycled; Acquire blocks (honoring
// the context) when every handle is in use.
type sessionPool struct {
	max  int
	idle chan *session

	mu      sync.Mutex
	created int

	inUse atomic.Int64
	// peakInUse records the high-water mark; the pool tests assert it
	// never exceeds max under load.
	peakInUse atomic.Int64

	newClient func() *http.Client
}

func newSessionPool(max int) *sessionPool {
	if max <= 0 {
		max = 10
	}
	return &sessionPool{
		max:  max,
		idle: make(chan *session, max),
		newClient: func() *http.Client {
			return &http.Client{Timeout: 60 * time.Second}
		},
	}
}

// Acquire returns an idle session, creates one if under the limit, or
// waits for a release.
func (p *sessionPool) Acquire(ctx context.Context) (*session, error) {
	select {
	case s := <-p.idle:
		p.markAcquired()
		return s, nil
	default:
	}

	p.mu.Lock()
	if p.created < p.max {
		p.created++
		s := &session{id: p.created, http: p.newClient()}
		p.mu.Unlock()
		p.markAcquired()
		return s, nil
	}
	p.mu.Unlock()

	select {
	case s := <-p.idle:
		p.markAcquired()
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool.
func (p *sessionPool) Release(s *session) {
	if s == nil {
		return
	}
	p.inUse.Add(-1)
	p.idle <- s
}

// InUse reports the number of currently acquired sessions.
func (p *sessionPool) InUse() int { return int(p.inUse.Load()) }

// PeakInUse reports the historical maximum of InUse.
func (p *sessionPool) PeakInUse() int { return int(p.peakInUse.Load()) }

func (p *sessionPool) markAcquired() {
	n := p.inUse.Add(1)
	for {
		peak := p.peakInUse.Load()
		if n <= peak || p.peakInUse.CompareAndSwap(peak, n) {
			return
		}
	}
}
