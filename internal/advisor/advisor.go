// Package advisor hosts user strategies as long-lived single-goroutine
// actors. Each actor subscribes to its products' market streams, keeps a
// private inside-quote cache, and invokes the strategy callbacks with
// fault isolation: a panicking or erroring callback is demoted to a
// telemetry warning and the advisor continues with its prior store.
package advisor

import (
	"fmt"

	"keel/internal/market"
	"keel/internal/order"
	"keel/internal/pkg/symbol"
)

// Advisor is the strategy capability contract. Callbacks return the new
// opaque store value; returning an error preserves the previous store.
// Embed Base to pick up no-op defaults.
type Advisor interface {
	AfterStart(st *State) (any, error)
	HandleInsideQuote(quote market.MarketQuote, changes market.OrderBookChanges, st *State) (any, error)
	HandleEvent(quote market.MarketQuote, st *State) (any, error)
}

// Base provides default no-op implementations that keep the current store.
type Base struct{}

func (Base) AfterStart(st *State) (any, error) {
	return st.Store(), nil
}

func (Base) HandleInsideQuote(_ market.MarketQuote, _ market.OrderBookChanges, st *State) (any, error) {
	return st.Store(), nil
}

func (Base) HandleEvent(_ market.MarketQuote, st *State) (any, error) {
	return st.Store(), nil
}

// OrderUpdateFunc runs on the advisor goroutine for each status transition
// of an order this advisor submitted.
type OrderUpdateFunc func(old *order.Order, updated order.Order, opts map[string]any, st *State) (any, error)

// Spec is the materialised description of one advisor process, minted by a
// group factory.
type Spec struct {
	Advisor    Advisor
	GroupID    string
	AdvisorID  string
	Products   []symbol.Product
	OrderBooks map[string][]string
	Config     map[string]any
	Store      any
	Trades     []string
}

// Address names the actor: advisor_{group_id}_{advisor_id}.
func (s Spec) Address() string {
	return fmt.Sprintf("advisor_%s_%s", s.GroupID, s.AdvisorID)
}

// State is the actor-private strategy state handed to every callback.
type State struct {
	GroupID   string
	AdvisorID string
	Products  []symbol.Product
	Quotes    *market.QuoteCache
	Config    map[string]any
	Trades    []string

	store any
	actor *Actor
}

// Store returns the opaque user state.
func (s *State) Store() any {
	return s.store
}

func (s *State) setStore(v any) {
	s.store = v
}

// Orders exposes the order pipeline for strategy code.
func (s *State) Orders() *order.Pipeline {
	if s.actor == nil {
		return nil
	}
	return s.actor.deps.Orders
}

// OrderUpdated wraps a strategy callback into an order update callback.
// The pipeline delivers transitions by enqueueing a message onto this
// advisor's mailbox; fn never runs on a pipeline goroutine.
func (s *State) OrderUpdated(fn OrderUpdateFunc, opts map[string]any) *order.Callback {
	a := s.actor
	if a == nil || fn == nil {
		return nil
	}
	return &order.Callback{
		Opts: opts,
		Fn: func(old *order.Order, updated order.Order, cbOpts map[string]any) {
			a.enqueue(envelope{orderUpdate: &orderUpdate{
				fn:      fn,
				opts:    cbOpts,
				old:     old,
				updated: updated,
			}})
		},
	}
}
