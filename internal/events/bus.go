package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/NubleX/LEGION2/internal/logging"
)

// DefaultBufferSize is the per-subscriber buffer used when none is configured.
const DefaultBufferSize = 256

// Config configures a Bus.
type Config struct {
	// BufferSize bounds the non-terminal events pending per subscriber.
	BufferSize int
	// OnDrop, when set, is called for every event a full buffer discards.
	OnDrop func(Event)
}

// Bus fans events out to subscribers. Publish never blocks: every subscriber
// owns a bounded queue drained by its own goroutine.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	size    int
	onDrop  func(Event)
	dropped atomic.Uint64
	logger  *logging.Logger
	now     func() time.Time
}

// NewBus creates a bus.
func NewBus(cfg Config, logger *logging.Logger) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		size:   cfg.BufferSize,
		onDrop: cfg.OnDrop,
		logger: logger.WithComponent("events"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish queues e for every current subscriber.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		if dropped, ok := s.enqueue(e); ok {
			b.drop(dropped)
		}
	}
}

func (b *Bus) drop(e Event) {
	b.dropped.Add(1)
	b.logger.Debug("Dropped event for slow subscriber", "type", e.Type, "job_id", e.JobID)
	if b.onDrop != nil {
		b.onDrop(e)
	}
}

// Dropped returns the number of events discarded across all subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe registers a new subscriber. Subscribing to a closed bus returns
// a subscription whose channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	s := newSubscription(b, b.size)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.stop()
		return s
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription and rejects further publishing.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.stop()
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription receives events from a Bus.
type Subscription struct {
	bus *Bus
	out chan Event

	mu       sync.Mutex
	normal   []Event
	terminal []Event
	size     int

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newSubscription(b *Bus, size int) *Subscription {
	s := &Subscription{
		bus:  b,
		out:  make(chan Event),
		size: size,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

// C returns the delivery channel. It is closed once the subscription ends.
func (s *Subscription) C() <-chan Event {
	return s.out
}

// Close unsubscribes and waits for the delivery goroutine to exit. Pending
// events are discarded.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.stop()
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}

// Pending returns the number of queued, undelivered events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.normal) + len(s.terminal)
}

// enqueue adds e, returning the event it had to drop, if any.
func (s *Subscription) enqueue(e Event) (Event, bool) {
	s.mu.Lock()
	var (
		dropped    Event
		hasDropped bool
	)
	if e.Terminal {
		s.terminal = append(s.terminal, e)
	} else {
		if len(s.normal)+len(s.terminal) >= s.size {
			if len(s.normal) == 0 {
				s.mu.Unlock()
				return e, true
			}
			dropped, hasDropped = s.normal[0], true
			s.normal = s.normal[1:]
		}
		s.normal = append(s.normal, e)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return dropped, hasDropped
}

// next pops the event to deliver. Terminal events go first, except that a
// job's earlier non-terminal events still precede its terminal event.
func (s *Subscription) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.terminal) > 0 {
		t := s.terminal[0]
		for i, e := range s.normal {
			if e.JobID == t.JobID {
				s.normal = append(s.normal[:i], s.normal[i+1:]...)
				return e, true
			}
		}
		s.terminal = s.terminal[1:]
		return t, true
	}
	if len(s.normal) > 0 {
		e := s.normal[0]
		s.normal = s.normal[1:]
		return e, true
	}
	return Event{}, false
}

func (s *Subscription) pump() {
	defer close(s.done)
	defer close(s.out)

	for {
		e, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		select {
		case s.out <- e:
		case <-s.quit:
			return
		}
	}
}
