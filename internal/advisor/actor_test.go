package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/bus"
	"keel/internal/market"
	"keel/internal/order"
	"keel/internal/pkg/symbol"
	"keel/internal/telemetry"
	"keel/internal/venue"
)

var testProduct = symbol.Product{VenueID: "exchange_a", Symbol: "btc_usd"}

type insideCall struct {
	quote   market.MarketQuote
	changes market.OrderBookChanges
}

type captureAdvisor struct {
	Base
	insideCh     chan insideCall
	eventCh      chan market.MarketQuote
	panicOnEvent bool
	insideErr    error
}

func newCaptureAdvisor() *captureAdvisor {
	return &captureAdvisor{
		insideCh: make(chan insideCall, 16),
		eventCh:  make(chan market.MarketQuote, 16),
	}
}

func (c *captureAdvisor) HandleInsideQuote(q market.MarketQuote, changes market.OrderBookChanges, st *State) (any, error) {
	if c.insideErr != nil {
		return nil, c.insideErr
	}
	c.insideCh <- insideCall{quote: q, changes: changes}
	return st.Store(), nil
}

func (c *captureAdvisor) HandleEvent(q market.MarketQuote, st *State) (any, error) {
	if c.panicOnEvent {
		panic("strategy blew up")
	}
	c.eventCh <- q
	return st.Store(), nil
}

type fakeBook struct {
	mu sync.Mutex
	q  market.MarketQuote
	e  error
}

func (b *fakeBook) InsideQuote(venueID, sym string) (market.MarketQuote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.e != nil {
		return market.MarketQuote{}, b.e
	}
	q := b.q
	q.VenueID = venueID
	q.Symbol = sym
	return q, nil
}

func (b *fakeBook) set(q market.MarketQuote) {
	b.mu.Lock()
	b.q = q
	b.mu.Unlock()
}

type sinkRec struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *sinkRec) Record(e telemetry.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *sinkRec) count(kind telemetry.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func quoteAt(bidPrice, bidSize, askPrice, askSize string) market.MarketQuote {
	return market.MarketQuote{
		Bid: market.PricePoint{Price: d(bidPrice), Size: d(bidSize)},
		Ask: market.PricePoint{Price: d(askPrice), Size: d(askSize)},
	}
}

func startTestActor(t *testing.T, adv Advisor, deps Deps) *Actor {
	t.Helper()
	if deps.Bus == nil {
		deps.Bus = bus.NewMemory()
	}
	actor := NewActor(Spec{
		Advisor:   adv,
		GroupID:   "group_a",
		AdvisorID: "a1",
		Products:  []symbol.Product{testProduct},
	}, deps)
	require.NoError(t, actor.Start())
	t.Cleanup(actor.Stop)
	return actor
}

func expectInside(t *testing.T, ch chan insideCall) insideCall {
	t.Helper()
	select {
	case call := <-ch:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handle_inside_quote")
		return insideCall{}
	}
}

func expectNoInside(t *testing.T, ch chan insideCall) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected handle_inside_quote invocation")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestActorAddress(t *testing.T) {
	spec := Spec{GroupID: "group_a", AdvisorID: "a1"}
	assert.Equal(t, "advisor_group_a_a1", spec.Address())
}

func TestActorSnapshotRefreshesAndInvokes(t *testing.T) {
	adv := newCaptureAdvisor()
	book := &fakeBook{}
	book.set(quoteAt("100", "5", "101", "7"))
	mem := bus.NewMemory()
	actor := startTestActor(t, adv, Deps{Bus: mem, Books: book})

	mem.Publish(bus.Message{
		Topic: bus.Topic{Kind: bus.TopicOrderBookSnapshot, VenueID: "exchange_a", Symbol: "btc_usd"},
		Snapshot: market.OrderBookSnapshot{
			Bids: []market.PriceLevel{{Price: d("100"), Size: d("5")}},
			Asks: []market.PriceLevel{{Price: d("101"), Size: d("7")}},
		},
	})

	call := expectInside(t, adv.insideCh)
	assert.True(t, call.quote.Bid.Price.Equal(d("100")))
	assert.Len(t, call.changes.Bids, 1)

	cached, ok := actor.State().Quotes.For("exchange_a", "btc_usd")
	require.True(t, ok)
	assert.True(t, cached.Equal(call.quote))
}

func TestActorChangesStaleness(t *testing.T) {
	adv := newCaptureAdvisor()
	book := &fakeBook{}
	book.set(quoteAt("100", "5", "101", "7"))
	mem := bus.NewMemory()
	actor := startTestActor(t, adv, Deps{Bus: mem, Books: book})

	changesTopic := bus.Topic{Kind: bus.TopicOrderBookChanges, VenueID: "exchange_a", Symbol: "btc_usd"}
	snapshotTopic := bus.Topic{Kind: bus.TopicOrderBookSnapshot, VenueID: "exchange_a", Symbol: "btc_usd"}

	// Seed the cache via a snapshot.
	mem.Publish(bus.Message{Topic: snapshotTopic, Snapshot: market.OrderBookSnapshot{}})
	expectInside(t, adv.insideCh)

	t.Run("deltas strictly outside the inside are skipped", func(t *testing.T) {
		mem.Publish(bus.Message{Topic: changesTopic, Changes: market.OrderBookChanges{
			Bids: []market.PriceLevel{{Price: d("99"), Size: d("1")}},
			Asks: []market.PriceLevel{{Price: d("102"), Size: d("1")}},
		}})
		expectNoInside(t, adv.insideCh)
	})

	t.Run("stale delta with unchanged refresh is skipped", func(t *testing.T) {
		mem.Publish(bus.Message{Topic: changesTopic, Changes: market.OrderBookChanges{
			Bids: []market.PriceLevel{{Price: d("100"), Size: d("9")}},
		}})
		expectNoInside(t, adv.insideCh)
	})

	t.Run("delta at the inside bid with new size invokes once", func(t *testing.T) {
		book.set(quoteAt("100", "9", "101", "7"))
		mem.Publish(bus.Message{Topic: changesTopic, Changes: market.OrderBookChanges{
			Bids: []market.PriceLevel{{Price: d("100"), Size: d("9")}},
		}})
		call := expectInside(t, adv.insideCh)
		assert.True(t, call.quote.Bid.Size.Equal(d("9")))
		expectNoInside(t, adv.insideCh)

		cached, _ := actor.State().Quotes.For("exchange_a", "btc_usd")
		assert.True(t, cached.Bid.Size.Equal(d("9")))
	})
}

func TestActorMarketQuoteEvent(t *testing.T) {
	adv := newCaptureAdvisor()
	mem := bus.NewMemory()
	actor := startTestActor(t, adv, Deps{Bus: mem, Books: &fakeBook{}})

	quote := quoteAt("100", "5", "101", "7")
	quote.VenueID = "exchange_a"
	quote.Symbol = "btc_usd"
	mem.Publish(bus.Message{
		Topic: bus.Topic{Kind: bus.TopicMarketQuote, VenueID: "exchange_a", Symbol: "btc_usd"},
		Quote: quote,
	})

	select {
	case got := <-adv.eventCh:
		assert.True(t, got.Equal(quote))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handle_event")
	}
	cached, ok := actor.State().Quotes.For("exchange_a", "btc_usd")
	require.True(t, ok)
	assert.True(t, cached.Equal(quote))
}

func TestActorFaultIsolation(t *testing.T) {
	t.Run("panicking callback demotes to a warning and keeps running", func(t *testing.T) {
		adv := newCaptureAdvisor()
		adv.panicOnEvent = true
		events := &sinkRec{}
		mem := bus.NewMemory()
		startTestActor(t, adv, Deps{Bus: mem, Books: &fakeBook{}, Events: events})

		topic := bus.Topic{Kind: bus.TopicMarketQuote, VenueID: "exchange_a", Symbol: "btc_usd"}
		mem.Publish(bus.Message{Topic: topic, Quote: quoteAt("100", "5", "101", "7")})
		require.Eventually(t, func() bool {
			return events.count(telemetry.KindHandleEventError) == 1
		}, 2*time.Second, 5*time.Millisecond)

		mem.Publish(bus.Message{Topic: topic, Quote: quoteAt("100", "5", "101", "7")})
		require.Eventually(t, func() bool {
			return events.count(telemetry.KindHandleEventError) == 2
		}, 2*time.Second, 5*time.Millisecond)

		events.mu.Lock()
		defer events.mu.Unlock()
		assert.Contains(t, events.events[0].Reason, "strategy blew up")
		assert.NotEmpty(t, events.events[0].Stack)
	})

	t.Run("erroring callback preserves the store", func(t *testing.T) {
		adv := newCaptureAdvisor()
		adv.insideErr = errors.New("bad tick")
		events := &sinkRec{}
		book := &fakeBook{}
		book.set(quoteAt("100", "5", "101", "7"))
		mem := bus.NewMemory()
		actor := startTestActor(t, adv, Deps{Bus: mem, Books: book, Events: events})
		actor.State().setStore("precious")

		mem.Publish(bus.Message{
			Topic:    bus.Topic{Kind: bus.TopicOrderBookSnapshot, VenueID: "exchange_a", Symbol: "btc_usd"},
			Snapshot: market.OrderBookSnapshot{},
		})
		require.Eventually(t, func() bool {
			return events.count(telemetry.KindHandleInsideQuoteError) == 1
		}, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, "precious", actor.State().Store())
	})
}

type acceptAdapter struct{}

func (acceptAdapter) Name() string { return "exchange_a" }
func (acceptAdapter) CreateOrder(_ context.Context, _ string, req venue.CreateRequest) (venue.CreateResult, error) {
	return venue.CreateResult{ServerID: "srv-1"}, nil
}
func (acceptAdapter) AmendOrder(_ context.Context, _, serverID string, _ venue.AmendAttrs) (venue.AmendResult, error) {
	return venue.AmendResult{ServerID: serverID}, nil
}
func (acceptAdapter) AmendOrders(_ context.Context, _ string, reqs []venue.AmendRequest) ([]venue.AmendOutcome, error) {
	out := make([]venue.AmendOutcome, len(reqs))
	for i, r := range reqs {
		out[i] = venue.AmendOutcome{ServerID: r.ServerID}
	}
	return out, nil
}
func (acceptAdapter) CancelOrder(_ context.Context, _, serverID string) (venue.CancelResult, error) {
	return venue.CancelResult{OrderID: serverID}, nil
}

// Order update callbacks are delivered as mailbox messages and run on the
// advisor goroutine with access to the state.
func TestActorOrderUpdatedDelivery(t *testing.T) {
	adv := newCaptureAdvisor()
	pipeline := order.NewPipeline(order.NewStore(), map[string]venue.Adapter{"exchange_a": acceptAdapter{}}, nil)
	defer pipeline.Close()
	actor := startTestActor(t, adv, Deps{Books: &fakeBook{}, Orders: pipeline})

	type updateCall struct {
		old     *order.Order
		updated order.Order
		opts    map[string]any
		store   any
	}
	updates := make(chan updateCall, 8)
	cb := actor.State().OrderUpdated(func(old *order.Order, updated order.Order, opts map[string]any, st *State) (any, error) {
		updates <- updateCall{old: old, updated: updated, opts: opts, store: st.Store()}
		return "seen", nil
	}, map[string]any{"intent": "test"})

	_, err := actor.State().Orders().BuyLimit(context.Background(), order.LimitRequest{
		VenueID:     "exchange_a",
		AccountID:   "main",
		Symbol:      "btc_usd",
		Price:       d("100"),
		Size:        d("1"),
		TimeInForce: order.GoodTillCancel,
		Callback:    cb,
	})
	require.NoError(t, err)

	first := <-updates
	assert.Nil(t, first.old)
	assert.Equal(t, order.StatusEnqueued, first.updated.Status)
	assert.Equal(t, "test", first.opts["intent"])

	second := <-updates
	require.NotNil(t, second.old)
	assert.Equal(t, order.StatusEnqueued, second.old.Status)
	assert.Equal(t, order.StatusPending, second.updated.Status)

	// The store returned by the first invocation is visible to the second.
	assert.Equal(t, "seen", second.store)
}
