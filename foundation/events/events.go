// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"sync"
)

// DefaultBuffer is the number of events held for a receiver that isn't
// reading. Events beyond that are dropped for the receiver.
const DefaultBuffer = 100

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m      map[string]chan string
	buffer int
	closed bool
	mu     sync.RWMutex
}

// New constructs an events for registering and receiving events. A buffer
// of zero or less uses DefaultBuffer.
func New(buffer int) *Events {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Events{
		m:      make(map[string]chan string),
		buffer: buffer,
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire. Channels acquired after Shutdown are returned closed.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
	evt.closed = true
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events) Acquire(id string) <-chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.m[id]; exists {
		return ch
	}

	ch := make(chan string, evt.buffer)
	if evt.closed {
		close(ch)
		return ch
	}

	evt.m[id] = ch
	return ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Send signals a message to every registered channel. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- s:
		default:
		}
	}
}

// Count returns the number of registered receivers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}
