// Package publisher fans verification audit events out to a Store.
//
// In sync mode Emit writes straight through. In async mode events are queued
// in a bounded ring and drained by a background goroutine; when the ring is
// full the oldest queued event is dropped so Emit never blocks a player join.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "warden/pkg/platform/audit"
)

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
}

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	ring     *ring
	wake     chan struct{}
	done     chan struct{}
	closeMu  sync.Once
	interval time.Duration
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a ring of the given capacity.
func WithAsyncBuffer(capacity int) Option {
	return func(p *Publisher) {
		p.ring = newRing(capacity)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithFlushInterval bounds how long an async event may sit in the ring
// when no new events arrive to wake the drainer.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		p.interval = d
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ring != nil {
		p.wake = make(chan struct{}, 1)
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records an event. In async mode it only fails after Close.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.ring == nil {
		return p.store.Append(ctx, event)
	}
	if !p.ring.push(event) {
		return errors.New("audit publisher closed")
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// List reads events for a subject back from the store when it supports it.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	lister, ok := p.store.(Lister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return lister.ListBySubject(ctx, subject)
}

// Dropped returns how many async events were discarded because the ring was full.
func (p *Publisher) Dropped() int64 {
	if p.ring == nil {
		return 0
	}
	return p.ring.droppedCount()
}

// Close flushes pending async events and stops the drainer.
func (p *Publisher) Close() {
	if p.ring == nil {
		return
	}
	p.closeMu.Do(func() {
		p.ring.close()
		select {
		case p.wake <- struct{}{}:
		default:
		}
		<-p.done
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.wake:
		case <-ticker.C:
		}
		for _, event := range p.ring.popAll() {
			if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
				p.logger.Warn("failed to append audit event", "action", event.Action, "error", err)
			}
		}
		if p.ring.isClosed() && p.ring.len() == 0 {
			return
		}
	}
}

// ring is a bounded FIFO that drops its oldest entry when full.
type ring struct {
	mu      sync.Mutex
	events  []audit.Event
	head    int
	count   int
	dropped int64
	closed  bool
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 10000
	}
	return &ring{events: make([]audit.Event, capacity)}
}

func (r *ring) push(event audit.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	capacity := len(r.events)
	if r.count == capacity {
		r.head = (r.head + 1) % capacity
		r.count--
		r.dropped++
	}
	r.events[(r.head+r.count)%capacity] = event
	r.count++
	return true
}

func (r *ring) popAll() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	out := make([]audit.Event, r.count)
	for i := range out {
		out[i] = r.events[(r.head+i)%len(r.events)]
	}
	r.head = (r.head + r.count) % len(r.events)
	r.count = 0
	return out
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *ring) droppedCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *ring) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *ring) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
