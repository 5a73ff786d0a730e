// Package market holds quote and order-book change types shared by the
// advisor runtime and the order pipeline.
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one side of an inside quote.
type PricePoint struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// MarketQuote is the best bid/ask pair for a product. Immutable once
// constructed.
type MarketQuote struct {
	VenueID   string
	Symbol    string
	Bid       PricePoint
	Ask       PricePoint
	Timestamp time.Time
}

// Equal reports whether two quotes carry the same prices and sizes.
// Timestamps are ignored so a refresh that observes the same book does
// not count as a change.
func (q MarketQuote) Equal(other MarketQuote) bool {
	return q.VenueID == other.VenueID &&
		q.Symbol == other.Symbol &&
		q.Bid.Price.Equal(other.Bid.Price) &&
		q.Bid.Size.Equal(other.Bid.Size) &&
		q.Ask.Price.Equal(other.Ask.Price) &&
		q.Ask.Size.Equal(other.Ask.Size)
}

// PriceLevel is a single (price, size) delta or snapshot row.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBookChanges carries ordered bid and ask deltas for one product.
type OrderBookChanges struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// OrderBookSnapshot is a full book image. The runtime treats it as an
// unconditional refresh trigger; its rows also reach the advisor callback
// as changes.
type OrderBookSnapshot struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// Changes converts a snapshot into the change representation handed to
// advisor callbacks.
func (s OrderBookSnapshot) Changes() OrderBookChanges {
	return OrderBookChanges{Bids: s.Bids, Asks: s.Asks}
}

// OrderBook is the external snapshot/diff store consumed by the runtime.
// Only the inside-quote query is needed here.
type OrderBook interface {
	InsideQuote(venueID, symbol string) (MarketQuote, error)
}
