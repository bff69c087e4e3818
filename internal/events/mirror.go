package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/internal/session"
	"github.com/weiawesome/live-poll/pkg/log"
	"github.com/weiawesome/live-poll/pkg/pubsub"
)

const publishTimeout = 5 * time.Second

// Config controls where mirrored events go.
type Config struct {
	Channel string
	Session string
	Buffer  int
}

// Mirror wraps a Notifier and republishes every broadcast event to an
// external bus. Live delivery always happens first; publishing runs in
// Run and drops events when the buffer is full.
type Mirror struct {
	next    session.Notifier
	pub     pubsub.Publisher
	cfg     Config
	queue   chan *pubsub.Event
	dropped atomic.Int64
}

func NewMirror(next session.Notifier, pub pubsub.Publisher, cfg Config) *Mirror {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	return &Mirror{
		next:  next,
		pub:   pub,
		cfg:   cfg,
		queue: make(chan *pubsub.Event, cfg.Buffer),
	}
}

func (m *Mirror) Broadcast(evt *domain.Event) {
	m.next.Broadcast(evt)

	out, err := pubsub.NewEvent(evt.Type, m.cfg.Session, evt.Data)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEvent, evt.Type).Msg("failed to encode mirrored event")
		return
	}

	select {
	case m.queue <- out:
	default:
		n := m.dropped.Add(1)
		l := log.L()
		l.Warn().Str(log.FieldEvent, evt.Type).Int64("dropped", n).Msg("event mirror buffer full, event dropped")
	}
}

func (m *Mirror) SendTo(connID string, evt *domain.Event) {
	m.next.SendTo(connID, evt)
}

func (m *Mirror) Terminate(connID string, evt *domain.Event) {
	m.next.Terminate(connID, evt)
}

// Dropped returns how many events were discarded because the buffer was full.
func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

// Run publishes queued events until ctx is done, then flushes what is
// already queued.
func (m *Mirror) Run(ctx context.Context) error {
	l := log.L()
	l.Info().Str("channel", m.cfg.Channel).Msg("event mirror started")

	for {
		select {
		case <-ctx.Done():
			m.flush()
			l.Info().Msg("event mirror stopped")
			return nil
		case evt := <-m.queue:
			m.publish(context.Background(), evt)
		}
	}
}

func (m *Mirror) flush() {
	for {
		select {
		case evt := <-m.queue:
			m.publish(context.Background(), evt)
		default:
			return
		}
	}
}

func (m *Mirror) publish(ctx context.Context, evt *pubsub.Event) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := m.pub.Publish(ctx, m.cfg.Channel, evt); err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEvent, evt.Type).Msg("failed to publish event")
	}
}

// Close releases the publisher. Call after Run has returned.
func (m *Mirror) Close() error {
	return m.pub.Close()
}
