package advisor

import (
	"keel/internal/market"
)

// QuoteStale reports whether the cached inside quote could be invalidated
// by the change set. Both subclauses on each side are load-bearing: the
// inequality catches any delta at or beyond the inside price, and the
// equality arm catches size-only changes at the inside.
func QuoteStale(prev *market.MarketQuote, changes market.OrderBookChanges) bool {
	return bidsStale(prev, changes.Bids) || asksStale(prev, changes.Asks)
}

func bidsStale(prev *market.MarketQuote, bids []market.PriceLevel) bool {
	if prev == nil {
		return true
	}
	for _, lvl := range bids {
		if lvl.Price.GreaterThanOrEqual(prev.Bid.Price) {
			return true
		}
		if lvl.Price.Equal(prev.Bid.Price) && !lvl.Size.Equal(prev.Bid.Size) {
			return true
		}
	}
	return false
}

func asksStale(prev *market.MarketQuote, asks []market.PriceLevel) bool {
	if prev == nil {
		return true
	}
	for _, lvl := range asks {
		if lvl.Price.LessThanOrEqual(prev.Ask.Price) {
			return true
		}
		if lvl.Price.Equal(prev.Ask.Price) && !lvl.Size.Equal(prev.Ask.Size) {
			return true
		}
	}
	return false
}
