package realtime

import (
	"sync"
)

// Event types delivered by the change feed.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Tables carried over the change feed.
const (
	TableTransactions = "payment_transactions"
	TableAds          = "ads"
	TableMessages     = "messages"
)

// Event describes a single record mutation. New carries the record after the
// change, Old the record before it (updates and deletes only). Delivery may be
// duplicated or reordered; consumers must apply events idempotently.
type Event struct {
	Type  string `json:"type"`
	Table string `json:"table"`
	New   any    `json:"new_record,omitempty"`
	Old   any    `json:"old_record,omitempty"`
}

// Subscription is a single listener on one table. Unsubscribe is safe to call
// more than once; only the first call tears the subscription down.
type Subscription struct {
	C     <-chan Event
	ch    chan Event
	hub   *Hub
	table string
	once  sync.Once
}

// Unsubscribe removes the subscription from the hub and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub is the in-process change feed: services publish record mutations, views
// and background consumers subscribe per table.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a listener for mutations on the given table.
func (h *Hub) Subscribe(table string) *Subscription {
	ch := make(chan Event, 16)
	sub := &Subscription{C: ch, ch: ch, hub: h, table: table}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[*Subscription]struct{})
	}
	h.subs[table][sub] = struct{}{}
	return sub
}

// Publish fans the event out to all subscribers of its table. Slow consumers
// with a full buffer are skipped rather than blocking the publisher.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[evt.Table] {
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.table]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.table)
		}
	}
}

// SubscriberCount reports the number of active subscriptions on a table.
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}
