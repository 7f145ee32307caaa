package websocket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/internal/server/events"
)

type skipCounter struct {
	mu sync.Mutex
	n  map[string]int
}

func (s *skipCounter) StreamSkipped(transport string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n == nil {
		s.n = map[string]int{}
	}
	s.n[transport]++
}

func newHub(opts ...Option) *Hub {
	logger := zerolog.Nop()
	return NewHub(&logger, opts...)
}

func receive(t *testing.T, c *Client) events.Event {
	t.Helper()
	select {
	case e, ok := <-c.send:
		if !ok {
			t.Fatal("client queue closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("client did not receive an event")
	}
	return events.Event{}
}

func rebuilt(seq uint64) events.Event {
	return events.Event{Seq: seq, Type: events.RebuildCompleted, Data: events.Completed{Snapshot: seq}}
}

// TestHub_AttachGreets tests that a new client is greeted with its id.
func TestHub_AttachGreets(t *testing.T) {
	hub := newHub()
	client := NewClient("client-1", hub, nil)

	if !hub.Attach(client) {
		t.Fatal("attach refused")
	}
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client, got %d", got)
	}

	e := receive(t, client)
	hello, ok := e.Data.(events.Hello)
	if e.Type != events.Connected || !ok {
		t.Fatalf("expected greeting, got %#v", e)
	}
	if hello.ClientID != "client-1" || hello.Transport != Transport {
		t.Errorf("unexpected greeting %+v", hello)
	}
}

// TestHub_AttachReplaysLatestRebuild tests that late clients learn the catalog state.
func TestHub_AttachReplaysLatestRebuild(t *testing.T) {
	hub := newHub()
	hub.Deliver(rebuilt(1))
	hub.Deliver(events.Event{Seq: 2, Type: events.RebuildStarted, Data: events.Started{}})
	hub.Deliver(rebuilt(3))

	client := NewClient("late", hub, nil)
	hub.Attach(client)

	receive(t, client)
	if e := receive(t, client); e.Seq != 3 || e.Type != events.RebuildCompleted {
		t.Errorf("expected replay of seq 3, got %d %s", e.Seq, e.Type)
	}
	select {
	case e := <-client.send:
		t.Errorf("expected only one replayed event, got seq %d", e.Seq)
	default:
	}
}

// TestHub_DeliverInOrder tests that events keep their order per client.
func TestHub_DeliverInOrder(t *testing.T) {
	hub := newHub()
	client := NewClient("ordered", hub, nil)
	hub.Attach(client)
	receive(t, client)

	const n = 20
	for i := 1; i <= n; i++ {
		hub.Deliver(rebuilt(uint64(i)))
	}
	for i := 1; i <= n; i++ {
		if e := receive(t, client); e.Seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, e.Seq)
		}
	}
}

// TestHub_Detach tests that detaching closes the client's queue once.
func TestHub_Detach(t *testing.T) {
	hub := newHub()
	client := NewClient("client-1", hub, nil)
	hub.Attach(client)

	hub.Detach(client)
	hub.Detach(client)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
	receive(t, client)
	if _, ok := <-client.send; ok {
		t.Error("expected send channel to be closed")
	}
}

// TestHub_SlowClientDropped tests that a full client buffer disconnects
// that client only and is counted.
func TestHub_SlowClientDropped(t *testing.T) {
	skips := &skipCounter{}
	hub := newHub(WithRecorder(skips))

	slow := &Client{id: "slow", hub: hub, send: make(chan events.Event, 2)}
	fast := NewClient("fast", hub, nil)
	hub.Attach(slow)
	hub.Attach(fast)

	for i := 1; i <= 3; i++ {
		hub.Deliver(rebuilt(uint64(i)))
	}

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected the slow client to be dropped, %d clients left", got)
	}
	if skips.n[Transport] != 1 {
		t.Errorf("expected 1 skip recorded, got %d", skips.n[Transport])
	}
	receive(t, fast)
	for i := 1; i <= 3; i++ {
		if e := receive(t, fast); e.Seq != uint64(i) {
			t.Fatalf("fast client: expected seq %d, got %d", i, e.Seq)
		}
	}
}

// TestHub_Shutdown tests that cancelling the context drops every client
// and refuses new ones.
func TestHub_Shutdown(t *testing.T) {
	hub := newHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		hub.Attach(NewClient(fmt.Sprintf("client-%d", i), hub, nil))
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after shutdown, got %d", got)
	}
	if hub.Attach(NewClient("late", hub, nil)) {
		t.Error("attach after shutdown should be refused")
	}
}
