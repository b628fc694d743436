package server

import (
	"time"

	"github.com/rectcircle/kbdbridge/internal/variable"
)

// KeepAlive - TCP keep-alive probing of an accepted peer.
// A dead peer is detected after about Idle + Interval*Count.
type KeepAlive struct {
	Idle     time.Duration
	Interval time.Duration
	Count    int
}

// DefaultKeepAlive - 5s idle, 5s interval, 3 probes
func DefaultKeepAlive() KeepAlive {
	return KeepAlive{
		Idle:     variable.KeepAliveIdle,
		Interval: variable.KeepAliveInterval,
		Count:    variable.KeepAliveCount,
	}
}

func seconds(d time.Duration) int {
	if s := int(d / time.Second); s > 0 {
		return s
	}
	return 1
}
