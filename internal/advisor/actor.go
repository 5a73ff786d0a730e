package advisor

import (
	"fmt"
	"runtime/debug"
	"sync"

	"keel/internal/bus"
	"keel/internal/logger"
	"keel/internal/market"
	"keel/internal/order"
	"keel/internal/telemetry"
)

const mailboxSize = 256

// Deps are the collaborators every actor shares.
type Deps struct {
	Bus    bus.Bus
	Books  market.OrderBook
	Orders *order.Pipeline
	Events telemetry.Sink
}

type envelope struct {
	msg         *bus.Message
	orderUpdate *orderUpdate
}

type orderUpdate struct {
	fn      OrderUpdateFunc
	opts    map[string]any
	old     *order.Order
	updated order.Order
}

// Actor runs one advisor. Messages are processed strictly one at a time
// in mailbox order, so strategy callbacks never observe partial state from
// a concurrent message.
type Actor struct {
	spec  Spec
	deps  Deps
	state *State

	mailbox  chan envelope
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	unsubs   []func()
}

func NewActor(spec Spec, deps Deps) *Actor {
	if deps.Events == nil {
		deps.Events = telemetry.Nop{}
	}
	return &Actor{
		spec:    spec,
		deps:    deps,
		mailbox: make(chan envelope, mailboxSize),
		stopCh:  make(chan struct{}),
	}
}

func (a *Actor) Address() string {
	return a.spec.Address()
}

func (a *Actor) Spec() Spec {
	return a.spec
}

// State exposes the actor state for strategy code that needs to submit
// orders from outside a callback (tests, mostly). Callbacks receive the
// same value.
func (a *Actor) State() *State {
	return a.state
}

// Start builds the state, runs the after-start hook, subscribes to each
// product's snapshot/changes/quote topics, and spawns the dispatch loop.
func (a *Actor) Start() error {
	if a.spec.Advisor == nil {
		return fmt.Errorf("advisor %s has no implementation", a.Address())
	}
	a.state = &State{
		GroupID:   a.spec.GroupID,
		AdvisorID: a.spec.AdvisorID,
		Products:  a.spec.Products,
		Quotes:    market.NewQuoteCache(),
		Config:    a.spec.Config,
		Trades:    a.spec.Trades,
		store:     a.spec.Store,
		actor:     a,
	}

	a.invoke(telemetry.KindAfterStartError, "", "", func() (any, error) {
		return a.spec.Advisor.AfterStart(a.state)
	})

	for _, p := range a.spec.Products {
		for _, kind := range []bus.TopicKind{
			bus.TopicOrderBookSnapshot,
			bus.TopicOrderBookChanges,
			bus.TopicMarketQuote,
		} {
			topic := bus.Topic{Kind: kind, VenueID: p.VenueID, Symbol: p.Symbol}
			unsub := a.deps.Bus.Subscribe(topic, func(msg bus.Message) {
				m := msg
				a.enqueue(envelope{msg: &m})
			})
			a.unsubs = append(a.unsubs, unsub)
		}
	}

	a.wg.Add(1)
	go a.run()
	logger.Infof("advisor: %s started with %d products", a.Address(), len(a.spec.Products))
	return nil
}

// Stop unsubscribes, drains nothing further, and waits for the loop to
// exit. Idempotent.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		for _, unsub := range a.unsubs {
			unsub()
		}
		close(a.stopCh)
		a.wg.Wait()
		logger.Infof("advisor: %s stopped", a.Address())
	})
}

func (a *Actor) enqueue(env envelope) {
	select {
	case a.mailbox <- env:
	case <-a.stopCh:
	}
}

func (a *Actor) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stopCh:
			return
		case env := <-a.mailbox:
			a.dispatch(env)
		}
	}
}

func (a *Actor) dispatch(env envelope) {
	switch {
	case env.orderUpdate != nil:
		up := env.orderUpdate
		a.invoke(telemetry.KindOrderUpdatedError, up.updated.VenueID, up.updated.Symbol, func() (any, error) {
			return up.fn(up.old, up.updated, up.opts, a.state)
		})
	case env.msg != nil:
		a.dispatchMarket(*env.msg)
	}
}

func (a *Actor) dispatchMarket(msg bus.Message) {
	venueID, sym := msg.Topic.VenueID, msg.Topic.Symbol
	switch msg.Topic.Kind {
	case bus.TopicOrderBookSnapshot:
		quote, ok := a.refresh(venueID, sym)
		if !ok {
			return
		}
		changes := msg.Snapshot.Changes()
		a.invoke(telemetry.KindHandleInsideQuoteError, venueID, sym, func() (any, error) {
			return a.spec.Advisor.HandleInsideQuote(quote, changes, a.state)
		})

	case bus.TopicOrderBookChanges:
		prev, had := a.state.Quotes.For(venueID, sym)
		if had && !QuoteStale(&prev, msg.Changes) {
			return
		}
		quote, ok := a.refresh(venueID, sym)
		if !ok {
			return
		}
		if had && quote.Equal(prev) {
			return
		}
		changes := msg.Changes
		a.invoke(telemetry.KindHandleInsideQuoteError, venueID, sym, func() (any, error) {
			return a.spec.Advisor.HandleInsideQuote(quote, changes, a.state)
		})

	case bus.TopicMarketQuote:
		quote := msg.Quote
		a.state.Quotes.Put(venueID, sym, quote)
		a.invoke(telemetry.KindHandleEventError, venueID, sym, func() (any, error) {
			return a.spec.Advisor.HandleEvent(quote, a.state)
		})
	}
}

// refresh queries the external order book and caches the result.
func (a *Actor) refresh(venueID, sym string) (market.MarketQuote, bool) {
	quote, err := a.deps.Books.InsideQuote(venueID, sym)
	if err != nil {
		logger.Warnf("advisor: %s inside quote %s.%s failed: %v", a.Address(), venueID, sym, err)
		return market.MarketQuote{}, false
	}
	a.state.Quotes.Put(venueID, sym, quote)
	return quote, true
}

// invoke runs a strategy callback, replacing the store on success. Panics
// and errors are demoted to telemetry warnings and leave the store at its
// pre-callback value.
func (a *Actor) invoke(kind telemetry.EventKind, venueID, sym string, fn func() (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			a.deps.Events.Record(telemetry.Event{
				Kind:      kind,
				GroupID:   a.spec.GroupID,
				AdvisorID: a.spec.AdvisorID,
				VenueID:   venueID,
				Symbol:    sym,
				Reason:    fmt.Sprintf("panic: %v", r),
				Stack:     string(debug.Stack()),
			})
		}
	}()
	store, err := fn()
	if err != nil {
		a.deps.Events.Record(telemetry.Event{
			Kind:      kind,
			GroupID:   a.spec.GroupID,
			AdvisorID: a.spec.AdvisorID,
			VenueID:   venueID,
			Symbol:    sym,
			Reason:    err.Error(),
		})
		return
	}
	a.state.setStore(store)
}
