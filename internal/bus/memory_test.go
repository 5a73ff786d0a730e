package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"keel/internal/market"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	m := NewMemory()
	topic := Topic{Kind: TopicMarketQuote, VenueID: "exchange_a", Symbol: "btc_usd"}
	other := Topic{Kind: TopicMarketQuote, VenueID: "exchange_a", Symbol: "eth_usd"}

	var got []Message
	unsub := m.Subscribe(topic, func(msg Message) {
		got = append(got, msg)
	})
	defer unsub()

	m.Publish(Message{Topic: topic})
	m.Publish(Message{Topic: other})
	m.Publish(Message{Topic: topic})

	assert.Len(t, got, 2)
}

// Delivery to one subscriber preserves publication order per topic.
func TestMemoryOrdering(t *testing.T) {
	m := NewMemory()
	topic := Topic{Kind: TopicOrderBookChanges, VenueID: "exchange_a", Symbol: "btc_usd"}

	var seq []int
	m.Subscribe(topic, func(msg Message) {
		seq = append(seq, len(msg.Changes.Bids))
	})

	for i := 0; i < 5; i++ {
		bids := make([]market.PriceLevel, i)
		m.Publish(Message{Topic: topic, Changes: market.OrderBookChanges{Bids: bids}})
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seq)
}

func TestMemoryUnsubscribe(t *testing.T) {
	m := NewMemory()
	topic := Topic{Kind: TopicMarketQuote, VenueID: "exchange_a", Symbol: "btc_usd"}

	count := 0
	unsub := m.Subscribe(topic, func(Message) { count++ })
	m.Publish(Message{Topic: topic})
	unsub()
	unsub() // idempotent
	m.Publish(Message{Topic: topic})

	assert.Equal(t, 1, count)
}

func TestMemoryMultipleSubscribers(t *testing.T) {
	m := NewMemory()
	topic := Topic{Kind: TopicOrderBookSnapshot, VenueID: "exchange_a", Symbol: "btc_usd"}

	a, b := 0, 0
	m.Subscribe(topic, func(Message) { a++ })
	m.Subscribe(topic, func(Message) { b++ })
	m.Publish(Message{Topic: topic})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
