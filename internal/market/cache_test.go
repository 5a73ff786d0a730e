package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteCache(t *testing.T) {
	c := NewQuoteCache()
	_, ok := c.For("exchange_a", "btc_usd")
	assert.False(t, ok)

	q := MarketQuote{
		VenueID: "exchange_a",
		Symbol:  "btc_usd",
		Bid:     PricePoint{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(5)},
		Ask:     PricePoint{Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(7)},
	}
	c.Put("exchange_a", "btc_usd", q)

	got, ok := c.For("exchange_a", "btc_usd")
	require.True(t, ok)
	assert.True(t, got.Equal(q))
	assert.Equal(t, 1, c.Len())

	// Same symbol on another venue is a distinct entry.
	c.Put("exchange_b", "btc_usd", q)
	assert.Equal(t, 2, c.Len())
}

func TestMarketQuoteEqual(t *testing.T) {
	base := MarketQuote{
		VenueID: "exchange_a",
		Symbol:  "btc_usd",
		Bid:     PricePoint{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(5)},
		Ask:     PricePoint{Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(7)},
	}

	same := base
	assert.True(t, base.Equal(same))

	sizeChanged := base
	sizeChanged.Bid.Size = decimal.NewFromInt(6)
	assert.False(t, base.Equal(sizeChanged))

	// Equal compares scale-insensitively, like the decimals themselves.
	rescaled := base
	rescaled.Bid.Price = decimal.RequireFromString("100.0")
	assert.True(t, base.Equal(rescaled))
}

func TestSnapshotChanges(t *testing.T) {
	s := OrderBookSnapshot{
		Bids: []PriceLevel{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}},
		Asks: []PriceLevel{{Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(2)}},
	}
	ch := s.Changes()
	assert.Equal(t, s.Bids, ch.Bids)
	assert.Equal(t, s.Asks, ch.Asks)
}
