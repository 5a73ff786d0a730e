// Package telemetry carries the runtime's warning and audit events to
// pluggable sinks: the logger, and optionally a sqlite journal.
package telemetry

import (
	"time"
)

type EventKind string

const (
	// Order lifecycle audit.
	KindOrderTransition EventKind = "order_transition"

	// Advisor callback faults, demoted from panics/errors by the runtime.
	KindAfterStartError        EventKind = "advisor_after_start_error"
	KindHandleInsideQuoteError EventKind = "advisor_handle_inside_quote_error"
	KindHandleEventError       EventKind = "advisor_handle_event_error"
	KindOrderUpdatedError      EventKind = "advisor_order_updated_error"

	// Venue-side warnings the pipeline does not retry.
	KindVenueCancelFailed EventKind = "venue_cancel_failed"
	KindVenueBreakerOpen  EventKind = "venue_breaker_open"
)

// Event is a single telemetry record. Only the fields relevant to the
// kind are populated.
type Event struct {
	Kind      EventKind
	GroupID   string
	AdvisorID string
	VenueID   string
	Symbol    string
	ClientID  string
	Status    string
	Reason    string
	Stack     string
	At        time.Time
}

// Sink receives events. Implementations must tolerate concurrent calls.
type Sink interface {
	Record(e Event)
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Record(e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(Event) {}

// Stamp fills the timestamp if the caller left it zero.
func Stamp(e Event) Event {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}
