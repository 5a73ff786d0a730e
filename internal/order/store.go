package order

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const storeShards = 16

// Store is the in-memory order registry keyed by client id. It is lock
// striped: each shard serializes updates for the client ids it owns, which
// makes FindByAndUpdate the atomic primitive the status machine is built
// on — when predicates overlap, exactly one caller wins.
type Store struct {
	shards [storeShards]storeShard
}

type storeShard struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].orders = make(map[string]*Order)
	}
	return s
}

func (s *Store) shard(clientID string) *storeShard {
	var h uint32 = 2166136261
	for i := 0; i < len(clientID); i++ {
		h ^= uint32(clientID[i])
		h *= 16777619
	}
	return &s.shards[h%storeShards]
}

// Add inserts a freshly constructed order with status enqueued, generating
// the client id when absent, and returns the stored snapshot.
func (s *Store) Add(o Order) Order {
	if o.ClientID == "" {
		o.ClientID = uuid.NewString()
	}
	o.Status = StatusEnqueued
	now := time.Now().UTC()
	o.EnqueuedAt = now
	o.UpdatedAt = now

	sh := s.shard(o.ClientID)
	sh.mu.Lock()
	cp := o
	sh.orders[o.ClientID] = &cp
	sh.mu.Unlock()
	return o
}

// Find returns a snapshot of the order with the given client id.
func (s *Store) Find(clientID string) (Order, bool) {
	sh := s.shard(clientID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	o, ok := sh.orders[clientID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Query is the predicate for FindByAndUpdate. Zero fields match anything;
// the pipeline always pins both client id and status.
type Query struct {
	ClientID string
	Status   Status
}

func (q Query) matches(o *Order) bool {
	if q.ClientID != "" && o.ClientID != q.ClientID {
		return false
	}
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	return true
}

// Update lists the field changes applied alongside a transition. Nil
// pointers leave the field untouched.
type Update struct {
	Status      Status
	ServerID    *string
	ErrorReason *string
	Price       *decimal.Decimal
	Size        *decimal.Decimal
	TimeInForce *TimeInForce
}

func (u Update) apply(o *Order) {
	if u.Status != "" {
		o.Status = u.Status
	}
	if u.ServerID != nil {
		o.ServerID = *u.ServerID
	}
	if u.ErrorReason != nil {
		o.ErrorReason = *u.ErrorReason
	}
	if u.Price != nil {
		o.Price = *u.Price
	}
	if u.Size != nil {
		o.Size = *u.Size
	}
	if u.TimeInForce != nil {
		o.TimeInForce = *u.TimeInForce
	}
	o.UpdatedAt = time.Now().UTC()
}

// FindByAndUpdate atomically locates the single order matching the query,
// applies the updates, and returns both the prior and updated snapshots.
// Concurrent calls on the same client id serialize on the shard lock.
func (s *Store) FindByAndUpdate(q Query, u Update) (old Order, updated Order, ok bool) {
	if q.ClientID != "" {
		sh := s.shard(q.ClientID)
		return sh.findAndUpdate(q, u)
	}
	for i := range s.shards {
		if old, updated, ok = s.shards[i].findAndUpdate(q, u); ok {
			return old, updated, true
		}
	}
	return Order{}, Order{}, false
}

func (sh *storeShard) findAndUpdate(q Query, u Update) (Order, Order, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if q.ClientID != "" {
		o, ok := sh.orders[q.ClientID]
		if !ok || !q.matches(o) {
			return Order{}, Order{}, false
		}
		old := *o
		u.apply(o)
		return old, *o, true
	}
	for _, o := range sh.orders {
		if q.matches(o) {
			old := *o
			u.apply(o)
			return old, *o, true
		}
	}
	return Order{}, Order{}, false
}

// All returns snapshots of every stored order.
func (s *Store) All() []Order {
	var out []Order
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, o := range sh.orders {
			out = append(out, *o)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *Store) Count() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.orders)
		sh.mu.RUnlock()
	}
	return n
}

// Clear removes all orders. Test hook.
func (s *Store) Clear() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.orders = make(map[string]*Order)
		sh.mu.Unlock()
	}
}
