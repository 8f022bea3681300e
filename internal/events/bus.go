// internal/events/bus.go
//
// Package events fans dispatched messages out to typed subscribers through a
// buffered queue and a fixed worker pool.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/message"
)

type Kind string

const (
	ListingItemReceived Kind = "listing_item_received"
	BidReceived         Kind = "bid_received"
	BidAccepted         Kind = "bid_accepted"
	BidRejected         Kind = "bid_rejected"
	BidCancelled        Kind = "bid_cancelled"

	// Re-emitted once an inbound message has been persisted.
	ListingItemStored Kind = "listing_item_stored"
	OrderCreated      Kind = "order_created"
)

// KindFor maps an envelope action to the event dispatched for it.
func KindFor(action message.ActionType) (Kind, bool) {
	switch action {
	case message.ActionListingItemAdd:
		return ListingItemReceived, true
	case message.ActionBid:
		return BidReceived, true
	case message.ActionAcceptBid:
		return BidAccepted, true
	case message.ActionRejectBid:
		return BidRejected, true
	case message.ActionCancelBid:
		return BidCancelled, true
	}
	return "", false
}

// Event carries a parsed envelope and its transport metadata. Secondary
// events set Payload to the persisted entity instead.
type Event struct {
	Kind     Kind
	Envelope *message.MarketplaceMessage
	Meta     message.Metadata
	Payload  interface{}
}

type Handler func(ctx context.Context, e Event) error

var ErrStopped = errors.New("event bus stopped")

type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler

	queue   chan Event
	workers int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
	log    *logrus.Entry
}

func NewBus(cfg config.EventsConfig) *Bus {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		handlers: make(map[Kind][]Handler),
		queue:    make(chan Event, cfg.Buffer),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
		log:      logrus.WithField("component", "events"),
	}
}

// Subscribe registers h for kind. Handlers of one kind run in registration order.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Start launches the worker pool. Calling it more than once has no effect.
func (b *Bus) Start() {
	b.start.Do(func() {
		for i := 0; i < b.workers; i++ {
			b.wg.Add(1)
			go b.work()
		}
	})
}

// Stop discards queued events and waits for running handlers to return.
func (b *Bus) Stop() {
	b.cancel()
	b.wg.Wait()
}

// Publish enqueues e without waiting for it to be handled. It only blocks
// while the queue is full.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case b.queue <- e:
		return nil
	case <-b.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit enqueues a secondary event only if the queue has room. Handlers use
// it so a full queue never blocks a worker on itself.
func (b *Bus) Emit(e Event) bool {
	if b.ctx.Err() != nil {
		return false
	}
	select {
	case b.queue <- e:
		return true
	default:
		b.log.WithField("kind", e.Kind).Warn("Event queue full, dropped secondary event")
		return false
	}
}

func (b *Bus) work() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case e := <-b.queue:
			b.dispatch(e)
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Kind]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.WithFields(logrus.Fields{"kind": e.Kind, "msgid": e.Meta.MsgID}).Debug("No subscribers for event")
		return
	}

	for _, h := range handlers {
		b.run(h, e)
	}
}

func (b *Bus) run(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"kind":  e.Kind,
				"msgid": e.Meta.MsgID,
				"panic": r,
			}).Error("Event handler panicked")
		}
	}()

	err := h(b.ctx, e)
	if err == nil {
		return
	}

	entry := b.log.WithError(err).WithFields(logrus.Fields{
		"kind":  e.Kind,
		"msgid": e.Meta.MsgID,
		"from":  e.Meta.From,
	})
	switch apperr.KindOf(err) {
	case apperr.KindMalformed, apperr.KindProtocolViolation, apperr.KindNotFound:
		entry.Warn("Dropped inbound message")
	default:
		entry.Error("Event handler failed")
	}
}
