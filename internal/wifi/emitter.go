package wifi

import "sync"

// emitter - delivers driver events in order without blocking the caller.
// close waits for the queue to drain, then closes the channel.
type emitter struct {
	events chan Event
	wake   chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	queue  []Event
	closed bool
}

func newEmitter() *emitter {
	e := &emitter{
		events: make(chan Event),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go e.pump()
	return e
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
	e.notify()
}

func (e *emitter) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *emitter) pump() {
	defer close(e.done)
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				close(e.events)
				return
			}
			<-e.wake
			continue
		}
		ev := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		e.events <- ev
	}
}

func (e *emitter) close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.notify()
	<-e.done
}
