package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/pkg/constants"
)

// Sink receives every event the broker accepts. Deliver must not block.
type Sink interface {
	Deliver(Event)
}

// Recorder counts broker traffic by event type.
type Recorder interface {
	EventPublished(eventType string)
	EventDropped(eventType string)
}

type nopRecorder struct{}

func (nopRecorder) EventPublished(string) {}
func (nopRecorder) EventDropped(string)   {}

// Broker queues published events and hands them to its sinks, one event
// at a time, in the order they were accepted.
type Broker struct {
	queue   chan Event
	sinks   []Sink
	seq     atomic.Uint64
	now     func() time.Time
	logger  *zerolog.Logger
	metrics Recorder
}

// Option configures a Broker.
type Option func(*Broker)

// WithSinks adds delivery targets.
func WithSinks(sinks ...Sink) Option {
	return func(b *Broker) {
		b.sinks = append(b.sinks, sinks...)
	}
}

// WithRecorder sets where publish and drop counts go.
func WithRecorder(r Recorder) Option {
	return func(b *Broker) {
		if r != nil {
			b.metrics = r
		}
	}
}

// WithQueueSize sets how many events may wait for delivery.
func WithQueueSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.queue = make(chan Event, n)
		}
	}
}

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBroker creates a broker. Publish works before Run starts; events
// wait in the queue.
func NewBroker(logger *zerolog.Logger, opts ...Option) *Broker {
	b := &Broker{
		queue:   make(chan Event, constants.EventQueueSize),
		now:     time.Now,
		logger:  logger,
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish stamps p and queues it. When the queue is full the event is
// dropped and counted; its Seq is still consumed.
func (b *Broker) Publish(p Payload) (Event, bool) {
	e := Event{
		Seq:       b.seq.Add(1),
		Type:      p.EventType(),
		Timestamp: b.now().UTC(),
		Data:      p,
	}

	select {
	case b.queue <- e:
		b.metrics.EventPublished(string(e.Type))
		return e, true
	default:
		b.metrics.EventDropped(string(e.Type))
		b.logger.Warn().
			Uint64("seq", e.Seq).
			Str("event_type", string(e.Type)).
			Msg("Event queue full, event dropped")
		return e, false
	}
}

// Run delivers queued events until ctx is cancelled. Should be called in a goroutine.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.logger.Debug().Int("pending", len(b.queue)).Msg("Event broker stopped")
			return
		case e := <-b.queue:
			for _, s := range b.sinks {
				s.Deliver(e)
			}
			b.logger.Debug().
				Uint64("seq", e.Seq).
				Str("event_type", string(e.Type)).
				Int("sinks", len(b.sinks)).
				Msg("Event delivered")
		}
	}
}

// LastSeq returns the sequence number of the most recent Publish.
func (b *Broker) LastSeq() uint64 {
	return b.seq.Load()
}
