package remote

import (
	"context"
	"sync"
	"time"
)

// Probe answers "is the remote reachable" from a cached Ping result so
// callers on the write path never wait for more than one check per TTL.
type Probe struct {
	pinger  Pinger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	checked time.Time
	online  bool
}

// NewProbe wraps p. A nil p is always online.
func NewProbe(p Pinger, ttl time.Duration) *Probe {
	return &Probe{pinger: p, ttl: ttl, timeout: 3 * time.Second, now: time.Now}
}

// Online reports whether the last ping, at most ttl old, succeeded.
func (p *Probe) Online() bool {
	if p == nil || p.pinger == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checked.IsZero() && p.now().Sub(p.checked) < p.ttl {
		return p.online
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	p.online = p.pinger.Ping(ctx) == nil
	p.checked = p.now()
	return p.online
}

// Invalidate forces the next Online call to ping.
func (p *Probe) Invalidate() {
	p.mu.Lock()
	p.checked = time.Time{}
	p.mu.Unlock()
}
