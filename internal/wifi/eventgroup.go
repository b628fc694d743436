package wifi

import (
	"context"
	"sync"
)

const (
	bitConnected uint32 = 1 << iota
	bitFailed
)

// eventGroup - sticky bit rendezvous between the event loop and waiters
type eventGroup struct {
	mu      sync.Mutex
	bits    uint32
	changed chan struct{}
}

func newEventGroup() *eventGroup {
	return &eventGroup{changed: make(chan struct{})}
}

func (g *eventGroup) set(bits uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bits |= bits
	close(g.changed)
	g.changed = make(chan struct{})
}

// wait - block until any bit of mask is set, bits are not cleared
func (g *eventGroup) wait(ctx context.Context, mask uint32) (uint32, error) {
	for {
		g.mu.Lock()
		bits, changed := g.bits, g.changed
		g.mu.Unlock()
		if bits&mask != 0 {
			return bits, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return bits, ctx.Err()
		}
	}
}
