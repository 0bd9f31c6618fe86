// Package mailbox provides an unbounded, order-preserving queue in front of
// a channel. Engines use it to emit events from inside calls made by the
// goroutine that also drains those events.
package mailbox

import "sync"

// Mailbox delivers values put into it on Out in order.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool

	signal chan struct{}
	quit   chan struct{}
	out    chan T
}

// New creates a mailbox and starts its delivery goroutine.
func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		out:    make(chan T),
	}
	go m.pump()
	return m
}

// Put enqueues v without blocking. It reports false once the mailbox is closed.
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// Out returns the delivery channel. It is closed after Close.
func (m *Mailbox[T]) Out() <-chan T {
	return m.out
}

// Close stops delivery. Undelivered values are dropped.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.quit)
	}
}

func (m *Mailbox[T]) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.signal:
				continue
			case <-m.quit:
				return
			}
		}
		v := m.queue[0]
		var zero T
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- v:
		case <-m.quit:
			return
		}
	}
}
