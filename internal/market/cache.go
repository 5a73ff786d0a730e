package market

// QuoteCache maps (venue, symbol) to the latest inside quote. Each advisor
// owns one privately; access is single-goroutine so no locking is needed.
type QuoteCache struct {
	quotes map[quoteKey]MarketQuote
}

type quoteKey struct {
	venueID string
	symbol  string
}

func NewQuoteCache() *QuoteCache {
	return &QuoteCache{quotes: make(map[quoteKey]MarketQuote)}
}

// For returns the cached quote for a product, if any.
func (c *QuoteCache) For(venueID, symbol string) (MarketQuote, bool) {
	q, ok := c.quotes[quoteKey{venueID: venueID, symbol: symbol}]
	return q, ok
}

func (c *QuoteCache) Put(venueID, symbol string, quote MarketQuote) {
	c.quotes[quoteKey{venueID: venueID, symbol: symbol}] = quote
}

func (c *QuoteCache) Len() int {
	return len(c.quotes)
}
