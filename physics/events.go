package physics

import "fmt"

// EventKind identifies simulation events.
type EventKind int

const (
	EventJointBroken EventKind = iota
	EventNumericalInstability
	EventConstraintTorn
	EventBodySlept
	EventBodyWoke
	EventScriptError
)

var eventNames = [...]string{
	"joint_broken",
	"numerical_instability",
	"constraint_torn",
	"body_slept",
	"body_woke",
	"script_error",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventNames[k]
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	for i, n := range eventNames {
		if n == string(b) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("physics: unknown event kind %q", string(b))
}

// Event is reported for the frame it happened on. Subject is the id of the
// joint, body or soft body concerned.
type Event struct {
	Kind    EventKind `json:"kind"`
	Frame   int       `json:"frame"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail,omitempty"`
	// Force is the force that broke a joint.
	Force float64 `json:"force,omitempty"`
}

// EventQueue is a simple FIFO queue.
type EventQueue struct {
	items []Event
}

// Push adds an event.
func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}
