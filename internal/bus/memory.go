package bus

import (
	"sync"
)

// Memory is the in-process Bus. Publish walks the topic's subscribers in
// registration order and invokes each handler inline, so per-topic
// ordering per subscriber falls out of the publisher's own ordering.
type Memory struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]*memorySub
}

type memorySub struct {
	id      uint64
	handler Handler
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[Topic][]*memorySub)}
}

func (m *Memory) Publish(msg Message) {
	m.mu.RLock()
	subs := m.subs[msg.Topic]
	m.mu.RUnlock()
	for _, s := range subs {
		s.handler(msg)
	}
}

func (m *Memory) Subscribe(topic Topic, h Handler) func() {
	if h == nil {
		return func() {}
	}
	m.mu.Lock()
	m.nextID++
	sub := &memorySub{id: m.nextID, handler: h}
	m.subs[topic] = append(m.subs[topic], sub)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.unsubscribe(topic, sub.id)
		})
	}
}

func (m *Memory) unsubscribe(topic Topic, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[topic]
	for i, s := range subs {
		if s.id == id {
			m.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[topic]) == 0 {
		delete(m.subs, topic)
	}
}
