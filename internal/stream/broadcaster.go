package stream

import (
	"context"
	"sync"
)

// Policy decides what happens when a listener's buffer is full.
type Policy int

const (
	// DropNewest discards the value being published. Used for frames and
	// one-shot events where a slow reader must not stall the producer.
	DropNewest Policy = iota
	// LatestWins evicts the oldest buffered value so the listener always
	// ends up holding the most recent one.
	LatestWins
)

// Broadcaster fans out values from one producer to N listeners.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	listeners map[*Listener[T]]struct{}
	buffer    int
	policy    Policy
}

// Listener receives values from the broadcaster.
type Listener[T any] struct {
	C    chan T
	done chan struct{}
	once sync.Once
}

// Done is closed when the listener is unsubscribed.
func (l *Listener[T]) Done() <-chan struct{} { return l.done }

// NewBroadcaster creates a broadcaster whose listeners buffer up to buffer
// values.
func NewBroadcaster[T any](buffer int, policy Policy) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster[T]{
		listeners: make(map[*Listener[T]]struct{}),
		buffer:    buffer,
		policy:    policy,
	}
}

func (b *Broadcaster[T]) newListener() *Listener[T] {
	return &Listener[T]{
		C:    make(chan T, b.buffer),
		done: make(chan struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster[T]) Subscribe() *Listener[T] {
	l := b.newListener()
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// SubscribeWith registers a new listener that starts out holding initial.
// No publish can slip in between registration and the initial value.
func (b *Broadcaster[T]) SubscribeWith(initial T) *Listener[T] {
	l := b.newListener()
	l.C <- initial
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call more
// than once.
func (b *Broadcaster[T]) Unsubscribe(l *Listener[T]) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish delivers v to every listener without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		b.deliver(l, v)
	}
}

func (b *Broadcaster[T]) deliver(l *Listener[T], v T) {
	select {
	case l.C <- v:
		return
	default:
	}
	if b.policy == DropNewest {
		return
	}
	// Evict one stale value and retry once. A concurrent reader may have
	// already made room, in which case the eviction is a no-op.
	select {
	case <-l.C:
	default:
	}
	select {
	case l.C <- v:
	default:
	}
}

// Run reads values from source and fans them out until ctx is done or the
// source is closed.
func (b *Broadcaster[T]) Run(ctx context.Context, source <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-source:
			if !ok {
				return
			}
			b.Publish(v)
		}
	}
}

// Close unsubscribes every listener.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	ls := make([]*Listener[T], 0, len(b.listeners))
	for l := range b.listeners {
		ls = append(ls, l)
	}
	b.listeners = make(map[*Listener[T]]struct{})
	b.mu.Unlock()

	for _, l := range ls {
		l.once.Do(func() { close(l.done) })
	}
}
