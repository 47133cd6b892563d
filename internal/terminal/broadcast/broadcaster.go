package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/terminal/escape"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultQueueSize = 256

var (
	// ErrUnknownSession is returned when subscribing to a session that was
	// never opened or has already been closed.
	ErrUnknownSession = errors.New("broadcast: unknown session")

	// ErrClosed is returned by Next once the subscription has ended.
	ErrClosed = errors.New("broadcast: subscription closed")
)

// Message is one decoded chunk as seen by a subscriber
type Message struct {
	SessionID id.SessionID
	Chunk     escape.DecodedChunk
	// Dropped counts chunks discarded for this subscriber since its
	// previous delivery.
	Dropped int
}

// Options configures a Broadcaster
type Options struct {
	QueueSize int
	Logger    *zap.Logger
}

// DefaultOptions returns default broadcaster options
func DefaultOptions() Options {
	return Options{QueueSize: defaultQueueSize}
}

// Subscription is a single observer of one session
type Subscription struct {
	ID        string
	SessionID id.SessionID

	ch      chan Message
	dropped atomic.Int64
}

// Next blocks until a message arrives, the subscription ends, or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return Message{}, ErrClosed
		}
		msg.Dropped = int(s.dropped.Swap(0))
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// offer enqueues msg, evicting the oldest queued messages while the queue
// is full. It returns how many were evicted.
func (s *Subscription) offer(msg Message) int {
	evicted := 0
	for {
		select {
		case s.ch <- msg:
			return evicted
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
			evicted++
		default:
		}
	}
}

type topic struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// Broadcaster routes chunks from sessions to their subscribers
type Broadcaster struct {
	opts   Options
	logger *zap.Logger

	mu     sync.RWMutex
	topics map[id.SessionID]*topic
}

// New creates a broadcaster
func New(opts Options) *Broadcaster {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		opts:   opts,
		logger: logger,
		topics: make(map[id.SessionID]*topic),
	}
}

// Open makes a session available for subscription. Opening an open session
// is a no-op.
func (b *Broadcaster) Open(sessionID id.SessionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.topics[sessionID]; !exists {
		b.topics[sessionID] = &topic{subs: make(map[string]*Subscription)}
	}
}

// Subscribe registers a new observer of sessionID
func (b *Broadcaster) Subscribe(sessionID id.SessionID) (*Subscription, error) {
	t := b.topic(sessionID)
	if t == nil {
		return nil, ErrUnknownSession
	}

	sub := &Subscription{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		ch:        make(chan Message, b.opts.QueueSize),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// CloseSession may have run between the lookup and the lock
	if t.subs == nil {
		return nil, ErrUnknownSession
	}
	t.subs[sub.ID] = sub
	return sub, nil
}

// Publish delivers chunk to every subscriber of sessionID without blocking.
// It returns the number of queued messages evicted to make room.
func (b *Broadcaster) Publish(sessionID id.SessionID, chunk escape.DecodedChunk) int {
	t := b.topic(sessionID)
	if t == nil {
		return 0
	}

	msg := Message{SessionID: sessionID, Chunk: chunk}

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for _, sub := range t.subs {
		if n := sub.offer(msg); n > 0 {
			evicted += n
			b.logger.Debug("Subscriber lagging",
				zap.String("session_id", sessionID.String()),
				zap.String("subscription_id", sub.ID),
				zap.Int("evicted", n))
		}
	}
	return evicted
}

// Unsubscribe removes sub and ends its stream. It is safe to call more than
// once and after the session has closed.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	t := b.topic(sub.SessionID)
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[sub.ID]; ok {
		delete(t.subs, sub.ID)
		close(sub.ch)
	}
}

// CloseSession ends every subscription of sessionID and forgets the session
func (b *Broadcaster) CloseSession(sessionID id.SessionID) {
	b.mu.Lock()
	t, ok := b.topics[sessionID]
	delete(b.topics, sessionID)
	b.mu.Unlock()

	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sub := range t.subs {
		close(sub.ch)
	}
	t.subs = nil
}

// Subscribers returns the number of live subscriptions to sessionID
func (b *Broadcaster) Subscribers(sessionID id.SessionID) int {
	t := b.topic(sessionID)
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (b *Broadcaster) topic(sessionID id.SessionID) *topic {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.topics[sessionID]
}
