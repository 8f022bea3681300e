// internal/inbox/poller.go
//
// Package inbox polls the transport for new messages and dispatches one event
// per well-formed envelope.
package inbox

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/message"
)

type Transport interface {
	Inbox(ctx context.Context, mode string) ([]daemon.InboxMessage, error)
}

// Gate reports whether the node is connected and bootstrapped.
type Gate interface {
	Ready() bool
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Poller struct {
	transport Transport
	gate      Gate
	bus       Publisher
	cfg       config.PollerConfig
	seen      *lru.Cache[string, struct{}]
	log       *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(transport Transport, gate Gate, bus Publisher, cfg config.PollerConfig) (*Poller, error) {
	size := cfg.SeenCacheSize
	if size <= 0 {
		size = 1024
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Poller{
		transport: transport,
		gate:      gate,
		bus:       bus,
		cfg:       cfg,
		seen:      seen,
		log:       logrus.WithField("component", "inbox"),
	}, nil
}

// Start launches the polling loop. The first tick runs immediately.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels the loop and waits for it to exit. No tick starts after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		interval := p.tick(ctx)
		if ctx.Err() != nil {
			return
		}
		timer.Reset(interval)
	}
}

// tick performs one poll and returns the delay before the next one.
func (p *Poller) tick(ctx context.Context) time.Duration {
	if !p.gate.Ready() {
		return p.cfg.DisconnectedInterval
	}

	msgs, err := p.transport.Inbox(ctx, daemon.InboxUnread)
	if ctx.Err() != nil {
		// Stopped while the call was in flight.
		return 0
	}
	if err != nil {
		p.log.WithError(err).Warn("Failed to read inbox")
		return p.cfg.DisconnectedInterval
	}

	for _, m := range msgs {
		p.handle(ctx, m)
	}
	return p.cfg.ConnectedInterval
}

func (p *Poller) handle(ctx context.Context, m daemon.InboxMessage) {
	entry := p.log.WithFields(logrus.Fields{"msgid": m.MsgID, "from": m.From})

	// The msgid keys the audit trail; without one a message cannot be deduplicated.
	if m.MsgID == "" {
		entry.Warn("Dropped message without msgid")
		return
	}
	if p.seen.Contains(m.MsgID) {
		entry.Debug("Skipping already dispatched message")
		return
	}
	p.seen.Add(m.MsgID, struct{}{})

	if m.Text == "" {
		entry.Warn("Dropped message with empty payload")
		return
	}

	envelope, err := message.Parse(m.Text)
	if err != nil {
		entry.WithError(err).Warn("Dropped unparsable message")
		return
	}
	if envelope.Version == "" {
		entry.Warn("Message has no protocol version")
	}

	action := envelope.Action()
	kind, ok := events.KindFor(action)
	if !ok {
		entry.WithField("action", action).Warn("Dropped message with unknown action")
		return
	}

	e := events.Event{
		Kind:     kind,
		Envelope: envelope,
		Meta: message.Metadata{
			MsgID:    m.MsgID,
			From:     m.From,
			To:       m.To,
			Sent:     m.Sent.Time,
			Received: m.Received.Time,
		},
	}
	if err := p.bus.Publish(ctx, e); err != nil {
		entry.WithError(err).Error("Failed to dispatch message")
		return
	}
	entry.WithField("kind", kind).Debug("Dispatched message")
}
