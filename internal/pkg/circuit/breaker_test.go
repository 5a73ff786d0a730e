package circuit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/telemetry"
)

type sinkRec struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *sinkRec) Record(e telemetry.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *sinkRec) all() []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Event(nil), s.events...)
}

var errVenue = errors.New("venue down")

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	events := &sinkRec{}
	b := NewBreaker("exchange_a", 3, time.Minute, events)

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.Record(errVenue)
	}
	assert.True(t, b.Allow(), "still closed below the threshold")
	b.Record(errVenue)

	assert.False(t, b.Allow())
	recorded := events.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, telemetry.KindVenueBreakerOpen, recorded[0].Kind)
	assert.Equal(t, "exchange_a", recorded[0].VenueID)
	assert.Contains(t, recorded[0].Reason, "venue down")
}

func TestBreakerSuccessResetsTheRun(t *testing.T) {
	b := NewBreaker("exchange_a", 2, time.Minute, nil)

	b.Record(errVenue)
	b.Record(nil)
	b.Record(errVenue)
	assert.True(t, b.Allow(), "non-consecutive failures never trip")
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	events := &sinkRec{}
	b := NewBreaker("exchange_a", 1, 20*time.Millisecond, events)
	b.Record(errVenue)
	require.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)

	t.Run("one probe at a time", func(t *testing.T) {
		assert.True(t, b.Allow())
		assert.False(t, b.Allow())
	})

	t.Run("failed probe restarts the cooldown without re-reporting", func(t *testing.T) {
		b.Record(errVenue)
		assert.False(t, b.Allow())
		assert.Len(t, events.all(), 1)
	})

	t.Run("successful probe closes", func(t *testing.T) {
		time.Sleep(30 * time.Millisecond)
		require.True(t, b.Allow())
		b.Record(nil)
		assert.True(t, b.Allow())
		assert.True(t, b.Allow())
	})
}
