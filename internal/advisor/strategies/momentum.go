package strategies

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"

	"keel/internal/advisor"
	"keel/internal/logger"
	"keel/internal/market"
	"keel/internal/order"
)

type momentumConfig struct {
	FastPeriod int     `mapstructure:"fast_period"`
	SlowPeriod int     `mapstructure:"slow_period"`
	OrderSize  float64 `mapstructure:"order_size"`
	AccountID  string  `mapstructure:"account_id"`
}

type momentumStore struct {
	mids     []float64
	long     bool
	liveID   string
	lastFast float64
	lastSlow float64
}

// Momentum is an SMA-crossover advisor over inside-quote mid prices. A
// fast average crossing above the slow one buys at the ask; crossing back
// below sells at the bid. One working order at a time.
type Momentum struct {
	advisor.Base
	cfg momentumConfig
}

func NewMomentum() advisor.Advisor {
	return &Momentum{}
}

func (m *Momentum) AfterStart(st *advisor.State) (any, error) {
	m.cfg = momentumConfig{
		FastPeriod: 5,
		SlowPeriod: 20,
		OrderSize:  1,
		AccountID:  "main",
	}
	if err := mapstructure.WeakDecode(st.Config, &m.cfg); err != nil {
		return nil, fmt.Errorf("momentum config: %w", err)
	}
	if m.cfg.FastPeriod >= m.cfg.SlowPeriod {
		return nil, fmt.Errorf("momentum config: fast_period %d must be below slow_period %d", m.cfg.FastPeriod, m.cfg.SlowPeriod)
	}
	return &momentumStore{}, nil
}

func (m *Momentum) HandleInsideQuote(q market.MarketQuote, _ market.OrderBookChanges, st *advisor.State) (any, error) {
	store, ok := st.Store().(*momentumStore)
	if !ok {
		store = &momentumStore{}
	}

	mid, _ := q.Bid.Price.Add(q.Ask.Price).Div(decimal.NewFromInt(2)).Float64()
	store.mids = append(store.mids, mid)
	if max := m.cfg.SlowPeriod * 2; len(store.mids) > max {
		store.mids = store.mids[len(store.mids)-max:]
	}
	if len(store.mids) < m.cfg.SlowPeriod {
		return store, nil
	}

	fast := last(talib.Sma(store.mids, m.cfg.FastPeriod))
	slow := last(talib.Sma(store.mids, m.cfg.SlowPeriod))
	crossedUp := store.lastFast != 0 && store.lastFast <= store.lastSlow && fast > slow
	crossedDown := store.lastFast != 0 && store.lastFast >= store.lastSlow && fast < slow
	store.lastFast, store.lastSlow = fast, slow

	if store.liveID != "" {
		return store, nil
	}

	size := decimal.NewFromFloat(m.cfg.OrderSize)
	switch {
	case crossedUp && !store.long:
		snap, err := st.Orders().BuyLimit(context.Background(), order.LimitRequest{
			VenueID:     q.VenueID,
			AccountID:   m.cfg.AccountID,
			Symbol:      q.Symbol,
			Price:       q.Ask.Price,
			Size:        size,
			TimeInForce: order.GoodTillCancel,
			Callback:    st.OrderUpdated(m.orderUpdated, map[string]any{"intent": "enter"}),
		})
		if err != nil {
			return store, err
		}
		store.liveID = snap.ClientID
	case crossedDown && store.long:
		snap, err := st.Orders().SellLimit(context.Background(), order.LimitRequest{
			VenueID:     q.VenueID,
			AccountID:   m.cfg.AccountID,
			Symbol:      q.Symbol,
			Price:       q.Bid.Price,
			Size:        size,
			TimeInForce: order.GoodTillCancel,
			Callback:    st.OrderUpdated(m.orderUpdated, map[string]any{"intent": "exit"}),
		})
		if err != nil {
			return store, err
		}
		store.liveID = snap.ClientID
	}
	return store, nil
}

// orderUpdated runs on the advisor goroutine for every transition of an
// order this advisor placed.
func (m *Momentum) orderUpdated(_ *order.Order, updated order.Order, opts map[string]any, st *advisor.State) (any, error) {
	store, ok := st.Store().(*momentumStore)
	if !ok {
		return st.Store(), nil
	}
	switch updated.Status {
	case order.StatusPending:
		if opts["intent"] == "enter" {
			store.long = true
		} else {
			store.long = false
		}
		store.liveID = ""
	case order.StatusError:
		logger.Warnf("momentum: order %s failed: %s", updated.ClientID, updated.ErrorReason)
		store.liveID = ""
	case order.StatusCanceled:
		store.liveID = ""
	}
	return store, nil
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
