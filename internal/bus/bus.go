// Package bus provides the in-process event distribution layer.
//
// Pollers publish [status.Event] values; each connected observer holds
// its own bounded queue, so one slow consumer can neither block
// publishers nor delay other consumers. The bus is an explicit
// component with an injected lifetime, never a process-wide singleton;
// tests construct as many independent instances as they like.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/statuswatch/statuswatch/internal/metrics"
	"github.com/statuswatch/statuswatch/internal/status"
)

// DefaultQueueCapacity is the per-subscriber queue size used when the
// caller passes a non-positive capacity to [New].
const DefaultQueueCapacity = 256

// Subscriber is one registered consumer of the event stream.
//
// The queue belongs to the bus; consumers only ever receive from
// [Subscriber.Events]. After Unsubscribe the channel is closed and no
// further events arrive.
type Subscriber struct {
	// ID uniquely identifies the subscription for Unsubscribe.
	ID string

	queue   chan status.Event
	dropped atomic.Uint64

	// mu serializes the evict-then-enqueue overflow step so
	// concurrent publishers cannot interleave inside it.
	mu     sync.Mutex
	closed bool
}

// Events returns the subscriber's receive channel. It is closed when
// the subscription is removed or the bus shuts down.
func (s *Subscriber) Events() <-chan status.Event {
	return s.queue
}

// Dropped returns how many events were discarded for this subscriber
// because its queue was full. The counter only ever grows; a consumer
// can use it to detect gaps in the stream.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// deliver enqueues ev, evicting the oldest queued event when full
// (drop-oldest policy). It never blocks.
func (s *Subscriber) deliver(ev status.Event) (droppedOne bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.queue <- ev:
		return false
	default:
	}

	// full: evict one, then enqueue. Both selects are non-blocking
	// because this subscriber's sends are serialized by s.mu; a
	// concurrent drain can only make room, never take it away.
	select {
	case <-s.queue:
		s.dropped.Add(1)
		droppedOne = true
	default:
	}
	select {
	case s.queue <- ev:
	default:
		// unreachable: sends are serialized by s.mu and the evict
		// above guarantees a free slot
		s.dropped.Add(1)
		droppedOne = true
	}
	return droppedOne
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// Bus fans events out to any number of subscribers with bounded memory
// per subscriber. All methods are safe for concurrent use.
type Bus struct {
	queueCap int
	logger   *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// New creates a bus whose subscribers each get a queue of queueCap
// events. A non-positive queueCap falls back to [DefaultQueueCapacity].
func New(queueCap int, logger *slog.Logger) *Bus {
	if queueCap <= 0 {
		queueCap = DefaultQueueCapacity
	}
	return &Bus{
		queueCap:    queueCap,
		logger:      logger,
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a new subscriber and returns it immediately; it
// never blocks. Callers must eventually call [Bus.Unsubscribe] with
// the subscriber's ID, or its queue keeps absorbing (and eventually
// dropping) events until the bus closes.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:    uuid.NewString(),
		queue: make(chan status.Event, b.queueCap),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub
	}
	b.subscribers[sub.ID] = sub
	total := len(b.subscribers)
	b.mu.Unlock()

	metrics.Subscribers.Set(float64(total))
	b.logger.Info("subscriber registered", "subscriber", sub.ID, "total", total)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids
// are ignored, so it is safe to call more than once.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	total := len(b.subscribers)
	b.mu.Unlock()

	if !ok {
		return
	}
	sub.close()
	metrics.Subscribers.Set(float64(total))
	b.logger.Info("subscriber removed", "subscriber", id, "total", total)
}

// Publish delivers ev to every current subscriber. It never blocks on
// a slow consumer: a full queue has its oldest event evicted for the
// new one, counted on that subscriber alone (drop-oldest). Events from
// one publisher reach a given subscriber in publish order.
func (b *Bus) Publish(ev status.Event) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.deliver(ev) {
			metrics.EventsDropped.Add(1)
			b.logger.Warn("subscriber queue full, dropped oldest event",
				"subscriber", sub.ID,
				"dropped_total", sub.Dropped(),
			)
		}
	}
	metrics.EventsPublished.WithLabelValues(ev.Provider, string(ev.Kind)).Inc()
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close removes every subscriber and closes their channels. Subsequent
// publishes are discarded and subsequent subscriptions come back
// already closed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.subscribers = make(map[string]*Subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	metrics.Subscribers.Set(0)
}
