// Package strategies holds the built-in example advisors.
package strategies

import (
	"keel/internal/advisor"
	"keel/internal/logger"
	"keel/internal/market"
)

// LogSpread logs the inside spread on every meaningful quote change. It
// is the smallest useful advisor and a template for new ones.
type LogSpread struct {
	advisor.Base
}

func NewLogSpread() advisor.Advisor {
	return &LogSpread{}
}

func (s *LogSpread) HandleInsideQuote(q market.MarketQuote, _ market.OrderBookChanges, st *advisor.State) (any, error) {
	spread := q.Ask.Price.Sub(q.Bid.Price)
	logger.Infof("spread: %s.%s bid=%s/%s ask=%s/%s spread=%s",
		q.VenueID, q.Symbol,
		q.Bid.Price, q.Bid.Size,
		q.Ask.Price, q.Ask.Size,
		spread)
	return st.Store(), nil
}
