// Package scancode holds the byte producers feeding the session server.
package scancode

import (
	"context"
	"errors"
)

// ErrExit - the source was stopped by its exit byte
var ErrExit = errors.New("scancode: exit byte received")

// Handler - consumes one produced byte, called synchronously from Run
type Handler func(b byte)

// Source - a byte producer.
// Run delivers every produced byte to handle in order and returns nil once
// ctx is done.
type Source interface {
	Run(ctx context.Context, handle Handler) error
}

// HostSink - implemented by sources that accept bytes from the host side
type HostSink interface {
	HandleHostByte(b byte)
}

// None - produces nothing
type None struct{}

// Run - block until ctx is done
func (None) Run(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return nil
}

// drain - release a ReaderToChannel goroutine nobody reads anymore
func drain(ch <-chan []byte) {
	go func() {
		for range ch {
		}
	}()
}
