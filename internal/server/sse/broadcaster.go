// Package sse streams catalog rebuild events as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/internal/server/events"
	"github.com/agentstation/aliasmap/pkg/constants"
)

// Transport is the name streams report in greetings and metrics.
const Transport = "sse"

// Recorder counts events a slow stream missed.
type Recorder interface {
	StreamSkipped(transport string)
}

type nopRecorder struct{}

func (nopRecorder) StreamSkipped(string) {}

// Broadcaster fans broker events out to open streams. A stream that falls
// StreamBufferSize events behind misses events rather than stalling the
// others. New streams first receive a greeting, then the latest rebuild
// event, so a client knows the catalog state without waiting.
type Broadcaster struct {
	mu        sync.Mutex
	streams   map[chan events.Event]struct{}
	last      *events.Event
	closed    bool
	keepAlive time.Duration
	now       func() time.Time
	logger    *zerolog.Logger
	metrics   Recorder
}

var _ events.Sink = (*Broadcaster)(nil)

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithKeepAlive sets how often idle streams get a comment line. Zero disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broadcaster) {
		b.keepAlive = d
	}
}

// WithRecorder sets where skipped events are counted.
func WithRecorder(r Recorder) Option {
	return func(b *Broadcaster) {
		if r != nil {
			b.metrics = r
		}
	}
}

// NewBroadcaster creates a broadcaster with no open streams.
func NewBroadcaster(logger *zerolog.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		streams:   make(map[chan events.Event]struct{}),
		keepAlive: constants.StreamKeepAlive,
		now:       time.Now,
		logger:    logger,
		metrics:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run closes every stream once ctx is cancelled. Should be called in a goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	<-ctx.Done()
	b.Close()
}

// Close ends every open stream and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.streams {
		close(ch)
		delete(b.streams, ch)
	}
	b.logger.Debug().Msg("SSE broadcaster closed")
}

// Deliver implements events.Sink.
func (b *Broadcaster) Deliver(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.Rebuild() {
		b.last = &e
	}
	for ch := range b.streams {
		select {
		case ch <- e:
		default:
			b.metrics.StreamSkipped(Transport)
			b.logger.Warn().Uint64("seq", e.Seq).Msg("SSE stream lagging, event skipped")
		}
	}
}

// ClientCount returns the number of open streams.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams)
}

// attach registers a stream and queues its greeting and the latest
// rebuild event. It returns nil once the broadcaster is closed.
func (b *Broadcaster) attach() chan events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	ch := make(chan events.Event, constants.StreamBufferSize)
	ch <- events.Greeting(Transport, "", b.now())
	if b.last != nil {
		ch <- *b.last
	}
	b.streams[ch] = struct{}{}
	b.logger.Debug().Int("streams", len(b.streams)).Msg("SSE stream opened")
	return ch
}

func (b *Broadcaster) detach(ch chan events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[ch]; ok {
		delete(b.streams, ch)
		close(ch)
	}
	b.logger.Debug().Int("streams", len(b.streams)).Msg("SSE stream closed")
}

// ServeHTTP streams events until the client goes away or the broadcaster closes.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := b.attach()
	if ch == nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer b.detach(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		ticker := time.NewTicker(b.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				b.logger.Debug().Err(err).Msg("SSE write failed")
				return
			}
			flusher.Flush()
		case <-tick:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeEvent writes e in the text/event-stream framing. Greetings carry no id
// so they do not disturb a client's Last-Event-ID.
func writeEvent(w io.Writer, e events.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", e.Type); err != nil {
		return err
	}
	if e.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", e.Seq); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
