// Package circuit gates venue adapter calls. A run of consecutive
// failures trips the venue open; while open, calls are shed until the
// cooldown elapses, after which a single probe is let through. The probe's
// outcome either closes the breaker or restarts the cooldown.
package circuit

import (
	"fmt"
	"sync"
	"time"

	"keel/internal/logger"
	"keel/internal/telemetry"
)

type Breaker struct {
	venueID     string
	maxFailures int
	cooldown    time.Duration
	events      telemetry.Sink

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(venueID string, maxFailures int, cooldown time.Duration, events telemetry.Sink) *Breaker {
	if events == nil {
		events = telemetry.Nop{}
	}
	return &Breaker{
		venueID:     venueID,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		events:      events,
	}
}

// Allow reports whether a venue call may proceed. At most one probe runs
// at a time once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.maxFailures {
		return true
	}
	if time.Since(b.openedAt) < b.cooldown || b.probing {
		return false
	}
	b.probing = true
	return true
}

// Record feeds a venue call outcome back. A nil err closes the breaker;
// the failure that completes a run of maxFailures trips it open and emits
// a telemetry event.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.failures >= b.maxFailures {
			logger.Infof("circuit: venue %s recovered", b.venueID)
		}
		b.failures = 0
		b.probing = false
		return
	}

	b.failures++
	b.probing = false
	if b.failures < b.maxFailures {
		return
	}
	b.openedAt = time.Now()
	if b.failures == b.maxFailures {
		b.events.Record(telemetry.Event{
			Kind:    telemetry.KindVenueBreakerOpen,
			VenueID: b.venueID,
			Reason:  fmt.Sprintf("open after %d consecutive failures: %v", b.failures, err),
		})
	}
}
