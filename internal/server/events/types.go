// Package events carries catalog rebuild notifications from the cache hooks
// to the streaming transports.
//
// Hooks publish typed payloads into a Broker. The broker numbers every
// event, delivers events to its sinks in publication order, and counts
// what it accepted and dropped. A gap in Seq tells a client it missed one.
package events

import (
	"time"

	"github.com/agentstation/aliasmap/pkg/catalogs"
)

// Type names an event on the wire.
type Type string

// Event types.
const (
	RebuildStarted   Type = "catalog.rebuild.started"
	RebuildCompleted Type = "catalog.rebuild.completed"
	RebuildFailed    Type = "catalog.rebuild.failed"

	// Connected is sent by a transport to a client that just attached.
	// It never passes through the broker and carries Seq 0.
	Connected Type = "connected"
)

// Payload is the typed body of an event.
type Payload interface {
	EventType() Type
}

// Event is a payload stamped by the broker.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      Payload   `json:"data"`
}

// Rebuild reports whether e describes the catalog state, as opposed to a
// transport greeting.
func (e Event) Rebuild() bool {
	return e.Type != Connected
}

// Started announces a rebuild.
type Started struct {
	Force bool `json:"force"`
}

// EventType implements Payload.
func (Started) EventType() Type { return RebuildStarted }

// Completed describes the snapshot a rebuild installed.
type Completed struct {
	Snapshot        uint64                  `json:"snapshot"`
	BuiltAt         time.Time               `json:"built_at"`
	Statistics      catalogs.Statistics     `json:"statistics"`
	Providers       catalogs.ProviderReport `json:"providers"`
	PreviousAliases *int                    `json:"previous_aliases"`
}

// EventType implements Payload.
func (Completed) EventType() Type { return RebuildCompleted }

// NewCompleted describes current. previous may be nil on the first build.
func NewCompleted(previous, current *catalogs.Snapshot) Completed {
	c := Completed{
		Snapshot:   current.Seq(),
		BuiltAt:    current.BuiltAt(),
		Statistics: current.Statistics(),
		Providers:  current.Providers(),
	}
	if previous != nil {
		n := previous.Len()
		c.PreviousAliases = &n
	}
	return c
}

// Failed reports a rebuild that produced no snapshot. The cause stays in
// the server log.
type Failed struct {
	ServingStale bool       `json:"serving_stale"`
	StaleBuiltAt *time.Time `json:"stale_built_at,omitempty"`
}

// EventType implements Payload.
func (Failed) EventType() Type { return RebuildFailed }

// Hello greets a client on attach.
type Hello struct {
	Transport string `json:"transport"`
	ClientID  string `json:"client_id,omitempty"`
}

// EventType implements Payload.
func (Hello) EventType() Type { return Connected }

// Greeting builds the Connected event a transport sends on attach.
func Greeting(transport, clientID string, at time.Time) Event {
	return Event{
		Type:      Connected,
		Timestamp: at.UTC(),
		Data:      Hello{Transport: transport, ClientID: clientID},
	}
}
