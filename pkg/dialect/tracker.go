package dialect

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// State is the position of a parse relative to embedded regions.
type State uint8

// Tracker states.
const (
	// StateHost parses under the host dialect's grammar.
	StateHost State = iota
	// StateBoundary is on the tokens entering or leaving a region.
	StateBoundary
	// StateEmbedded parses under the embedded dialect's grammar.
	StateEmbedded
)

func (s State) String() string {
	switch s {
	case StateHost:
		return "host"
	case StateBoundary:
		return "boundary"
	case StateEmbedded:
		return "embedded"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// ErrInvalidTransition is returned for a transition the current state does
// not allow.
var ErrInvalidTransition = errors.New("invalid chameleon transition")

// Event reports a state change to the tree-building and highlighting
// layers.
type Event struct {
	From, To  State
	Region    uuid.UUID
	Pos       token.Position
	Chameleon *grammar.Element
	Host      *Dialect
	// Embedding is nil for an unmapped chameleon; the region is opaque.
	Embedding *Embedding
}

// Opaque reports whether the event belongs to a region no dialect parses.
func (e Event) Opaque() bool { return e.Embedding == nil }

// Tracker runs the Host, Boundary and Embedded state machine for one parse.
// It is owned by that parse and not safe for concurrent use.
//
//	Host --Open--> Boundary --Enter--> Embedded --Close--> Boundary --Exit--> Host
type Tracker struct {
	registry *Registry
	host     *Dialect

	state     State
	closing   bool
	region    uuid.UUID
	chameleon *grammar.Element
	embedding *Embedding

	listeners []func(Event)
	events    []Event
}

// NewTracker starts in the host state of host. The registry resolves
// embedded dialects; with a nil registry every region is opaque.
func NewTracker(registry *Registry, host *Dialect) *Tracker {
	return &Tracker{registry: registry, host: host}
}

// Subscribe registers fn to receive every subsequent event.
func (t *Tracker) Subscribe(fn func(Event)) {
	t.listeners = append(t.listeners, fn)
}

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// Region returns the ID of the current region, or uuid.Nil in the host state.
func (t *Tracker) Region() uuid.UUID { return t.region }

// Embedding returns the embedding of the current region, nil when the
// tracker is in the host state or the region is opaque.
func (t *Tracker) Embedding() *Embedding { return t.embedding }

// Events returns the events emitted so far.
func (t *Tracker) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Highlighter returns the highlighter for the current state: the embedded
// dialect's inside a mapped region, otherwise the host's.
func (t *Tracker) Highlighter() Highlighter {
	if t.state == StateEmbedded && t.embedding != nil && t.embedding.Embedded.Highlighter != nil {
		return t.embedding.Embedded.Highlighter
	}
	return t.host.Highlighter
}

// Open moves from the host onto the opening boundary of chameleon.
func (t *Tracker) Open(chameleon *grammar.Element, pos token.Position) (Event, error) {
	if t.state != StateHost {
		return Event{}, fmt.Errorf("%w: open from %s", ErrInvalidTransition, t.state)
	}
	if chameleon == nil || chameleon.Kind() != grammar.KindChameleon {
		return Event{}, fmt.Errorf("%w: %v is not a chameleon", ErrInvalidTransition, chameleon)
	}
	t.region = uuid.New()
	t.chameleon = chameleon
	t.closing = false
	if t.registry != nil {
		t.embedding, _ = t.registry.Embedding(t.host, chameleon)
	}
	return t.emit(StateBoundary, pos), nil
}

// Enter moves from the opening boundary into the region.
func (t *Tracker) Enter(pos token.Position) (Event, error) {
	if t.state != StateBoundary || t.closing {
		return Event{}, fmt.Errorf("%w: enter from %s", ErrInvalidTransition, t.state)
	}
	return t.emit(StateEmbedded, pos), nil
}

// Close moves from the region onto its closing boundary. Reaching the end of
// the embedded root or the closing delimiter both close the region.
func (t *Tracker) Close(pos token.Position) (Event, error) {
	if t.state != StateEmbedded {
		return Event{}, fmt.Errorf("%w: close from %s", ErrInvalidTransition, t.state)
	}
	t.closing = true
	return t.emit(StateBoundary, pos), nil
}

// Exit returns to the host after the closing boundary.
func (t *Tracker) Exit(pos token.Position) (Event, error) {
	if t.state != StateBoundary || !t.closing {
		return Event{}, fmt.Errorf("%w: exit from %s", ErrInvalidTransition, t.state)
	}
	ev := t.emit(StateHost, pos)
	t.region = uuid.Nil
	t.chameleon = nil
	t.embedding = nil
	t.closing = false
	return ev, nil
}

func (t *Tracker) emit(to State, pos token.Position) Event {
	ev := Event{
		From:      t.state,
		To:        to,
		Region:    t.region,
		Pos:       pos,
		Chameleon: t.chameleon,
		Host:      t.host,
		Embedding: t.embedding,
	}
	t.state = to
	t.events = append(t.events, ev)
	for _, fn := range t.listeners {
		fn(ev)
	}
	return ev
}
