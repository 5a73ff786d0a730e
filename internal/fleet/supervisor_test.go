package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/advisor"
	"keel/internal/bus"
	"keel/internal/market"
)

type stubBook struct{}

func (stubBook) InsideQuote(venueID, sym string) (market.MarketQuote, error) {
	return market.MarketQuote{VenueID: venueID, Symbol: sym}, nil
}

func testDeps() advisor.Deps {
	return advisor.Deps{Bus: bus.NewMemory(), Books: stubBook{}}
}

func testSpecs(t *testing.T) []advisor.Spec {
	t.Helper()
	builder := NewBuilder(testRegistry(), universe())
	specs, err := builder.BuildSpecs([]Group{{
		ID:       "group_a",
		Advisor:  "noop",
		Factory:  "per_product",
		Products: "exchange_a",
	}})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	return specs
}

func TestSupervisorStart(t *testing.T) {
	sup := NewSupervisor(testDeps())
	defer sup.StopAll()
	specs := testSpecs(t)

	res, err := sup.Start(specs)
	require.NoError(t, err)
	assert.Equal(t, StartResult{New: 2, AlreadyRunning: 0}, res)

	res, err = sup.Start(specs)
	require.NoError(t, err)
	assert.Equal(t, StartResult{New: 0, AlreadyRunning: 2}, res)

	assert.Len(t, sup.Running(), 2)
}

func TestSupervisorInfo(t *testing.T) {
	sup := NewSupervisor(testDeps())
	defer sup.StopAll()
	specs := testSpecs(t)

	_, err := sup.Start(specs[:1])
	require.NoError(t, err)

	info := sup.Info(specs)
	require.Len(t, info, 2)
	assert.NotNil(t, info[0].Actor)
	assert.Nil(t, info[1].Actor)
}

func TestSupervisorTerminate(t *testing.T) {
	sup := NewSupervisor(testDeps())
	defer sup.StopAll()
	specs := testSpecs(t)

	_, err := sup.Start(specs)
	require.NoError(t, err)

	addr := specs[0].Address()
	assert.True(t, sup.Terminate(addr))
	assert.False(t, sup.Terminate(addr))
	assert.Len(t, sup.Running(), 1)
}

func TestSupervisorStopAll(t *testing.T) {
	sup := NewSupervisor(testDeps())
	specs := testSpecs(t)

	_, err := sup.Start(specs)
	require.NoError(t, err)
	assert.Equal(t, 2, sup.StopAll())
	assert.Empty(t, sup.Running())
	assert.Zero(t, sup.StopAll())
}
