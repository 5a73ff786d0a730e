// Package feed provides the built-in paper market data source: a random
// walk per product, published onto the bus as snapshot/changes/quote
// messages. It also answers the OrderBook inside-quote query, standing in
// for the external snapshot/diff store during local runs.
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"keel/internal/bus"
	"keel/internal/market"
	"keel/internal/pkg/symbol"
	"keel/internal/scheduler"
)

const snapshotEvery = 20

type Paper struct {
	bus      bus.Bus
	products []symbol.Product
	rng      *rand.Rand

	mu    sync.RWMutex
	books map[symbol.Product]*paperBook
	ticks int
}

type paperBook struct {
	bid market.PricePoint
	ask market.PricePoint
}

func NewPaper(b bus.Bus, products []symbol.Product) *Paper {
	f := &Paper{
		bus:      b,
		products: products,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		books:    make(map[symbol.Product]*paperBook, len(products)),
	}
	for _, p := range products {
		base := seedPrice(p)
		f.books[p] = &paperBook{
			bid: market.PricePoint{Price: base, Size: decimal.NewFromInt(1)},
			ask: market.PricePoint{Price: base.Add(tickSize(base)), Size: decimal.NewFromInt(1)},
		}
	}
	return f
}

// InsideQuote satisfies market.OrderBook.
func (f *Paper) InsideQuote(venueID, sym string) (market.MarketQuote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.books[symbol.Product{VenueID: venueID, Symbol: sym}]
	if !ok {
		return market.MarketQuote{}, fmt.Errorf("no book for %s.%s", venueID, sym)
	}
	return market.MarketQuote{
		VenueID:   venueID,
		Symbol:    sym,
		Bid:       b.bid,
		Ask:       b.ask,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Run ticks the walk until the context is done.
func (f *Paper) Run(ctx context.Context, every time.Duration) {
	s := scheduler.NewInterval(ctx, every)
	s.RunImmediately = true
	s.Start(f.tick)
}

func (f *Paper) tick() {
	f.mu.Lock()
	f.ticks++
	snapshot := f.ticks%snapshotEvery == 1
	type update struct {
		product symbol.Product
		quote   market.MarketQuote
		changes market.OrderBookChanges
	}
	updates := make([]update, 0, len(f.products))
	for _, p := range f.products {
		b := f.books[p]
		f.step(b)
		updates = append(updates, update{
			product: p,
			quote: market.MarketQuote{
				VenueID:   p.VenueID,
				Symbol:    p.Symbol,
				Bid:       b.bid,
				Ask:       b.ask,
				Timestamp: time.Now().UTC(),
			},
			changes: market.OrderBookChanges{
				Bids: []market.PriceLevel{{Price: b.bid.Price, Size: b.bid.Size}},
				Asks: []market.PriceLevel{{Price: b.ask.Price, Size: b.ask.Size}},
			},
		})
	}
	f.mu.Unlock()

	for _, u := range updates {
		if snapshot {
			f.bus.Publish(bus.Message{
				Topic:    bus.Topic{Kind: bus.TopicOrderBookSnapshot, VenueID: u.product.VenueID, Symbol: u.product.Symbol},
				Snapshot: market.OrderBookSnapshot{Bids: u.changes.Bids, Asks: u.changes.Asks},
			})
		} else {
			f.bus.Publish(bus.Message{
				Topic:   bus.Topic{Kind: bus.TopicOrderBookChanges, VenueID: u.product.VenueID, Symbol: u.product.Symbol},
				Changes: u.changes,
			})
		}
		f.bus.Publish(bus.Message{
			Topic: bus.Topic{Kind: bus.TopicMarketQuote, VenueID: u.product.VenueID, Symbol: u.product.Symbol},
			Quote: u.quote,
		})
	}
}

// step moves the book one tick up, one tick down (only while the bid is
// above one tick), or leaves the prices as they are, and reshuffles sizes.
func (f *Paper) step(b *paperBook) {
	tick := tickSize(b.bid.Price)
	switch f.rng.Intn(3) {
	case 0:
		b.bid.Price = b.bid.Price.Add(tick)
		b.ask.Price = b.ask.Price.Add(tick)
	case 1:
		if b.bid.Price.GreaterThan(tick) {
			b.bid.Price = b.bid.Price.Sub(tick)
			b.ask.Price = b.ask.Price.Sub(tick)
		}
	}
	b.bid.Size = decimal.NewFromInt(int64(1 + f.rng.Intn(9)))
	b.ask.Size = decimal.NewFromInt(int64(1 + f.rng.Intn(9)))
}

// seedPrice derives a stable starting price from the product name so runs
// are recognisable across restarts.
func seedPrice(p symbol.Product) decimal.Decimal {
	var h uint32 = 2166136261
	s := p.String()
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return decimal.NewFromInt(int64(100 + h%9900))
}

func tickSize(price decimal.Decimal) decimal.Decimal {
	if price.GreaterThan(decimal.NewFromInt(1000)) {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(0.1)
}
