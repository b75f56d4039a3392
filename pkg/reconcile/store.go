// Package reconcile is the client-side state contract every role UI
// follows: one serialized reducer applies broadcast events and local
// write confirmations, optimistic writes retry with bounded backoff and
// roll back on exhaustion, and a sequence gap forces a full resync.
package reconcile

import (
	"context"
	"encoding/json"
	"sync"

	"dinetab-order-services/internal/billing"
	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/lifecycle"
	"dinetab-order-services/internal/loyalty"
)

// State is the client's read-mostly copy. It is never authoritative:
// a process restart or missed event throws it away and refetches.
type State struct {
	Seq       uint64
	Orders    map[int64]lifecycle.Order
	Bills     map[int64]billing.Bill
	Customers map[string]loyalty.Customer
}

func newState() State {
	return State{
		Orders:    make(map[int64]lifecycle.Order),
		Bills:     make(map[int64]billing.Bill),
		Customers: make(map[string]loyalty.Customer),
	}
}

type Store struct {
	mu        sync.Mutex
	state     State
	outOfSync bool
	onResync  func()
	retry     RetryPolicy
}

func NewStore(retry RetryPolicy, onResync func()) *Store {
	return &Store{
		state:    newState(),
		onResync: onResync,
		retry:    retry,
	}
}

// Snapshot returns a copy safe to hand to rendering code.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := newState()
	out.Seq = s.state.Seq
	for k, v := range s.state.Orders {
		out.Orders[k] = v
	}
	for k, v := range s.state.Bills {
		out.Bills[k] = v
	}
	for k, v := range s.state.Customers {
		out.Customers[k] = v
	}
	return out
}

func (s *Store) OutOfSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outOfSync
}

// Reset installs a freshly fetched full state, clearing the out-of-sync
// flag. Called on connect and whenever a gap was detected.
func (s *Store) Reset(seq uint64, orders []lifecycle.Order, bills []billing.Bill, customers []loyalty.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = newState()
	s.state.Seq = seq
	for _, o := range orders {
		s.state.Orders[o.ID] = o
	}
	for _, b := range bills {
		s.state.Bills[b.ID] = b
	}
	for _, c := range customers {
		s.state.Customers[c.Phone] = c
	}
	s.outOfSync = false
}

// Apply folds one broadcast envelope into the local state. A sequence
// gap marks the store out of sync and triggers the resync callback; the
// stale event is dropped rather than applied out of order.
func (s *Store) Apply(env events.Envelope) {
	s.mu.Lock()
	if s.state.Seq != 0 && env.Seq != s.state.Seq+1 {
		s.outOfSync = true
		cb := s.onResync
		s.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}
	s.state.Seq = env.Seq
	s.applyLocked(env)
	s.mu.Unlock()
}

func (s *Store) applyLocked(env events.Envelope) {
	switch env.Type {
	case events.OrderCreated, events.OrderStatusChanged, events.OrderItemUpdated:
		var data struct {
			Order *lifecycle.Order `json:"order"`
		}
		if decodeData(env.Data, &data) && data.Order != nil {
			s.state.Orders[data.Order.ID] = *data.Order
		}
	case events.BillCreated:
		var data struct {
			Bill *billing.Bill `json:"bill"`
		}
		if decodeData(env.Data, &data) && data.Bill != nil {
			s.state.Bills[data.Bill.ID] = *data.Bill
		}
	case events.BillPaid:
		var data struct {
			Bill     *billing.Bill `json:"bill"`
			OrderIDs []int64       `json:"orderIds"`
		}
		if decodeData(env.Data, &data) {
			if data.Bill != nil {
				s.state.Bills[data.Bill.ID] = *data.Bill
			}
			for _, id := range data.OrderIDs {
				if order, ok := s.state.Orders[id]; ok {
					order.Status = lifecycle.StatusServed
					s.state.Orders[id] = order
				}
			}
		}
	case events.CustomerUpdated:
		var data struct {
			Customer *loyalty.Customer `json:"customer"`
			OldPhone string            `json:"oldPhone"`
		}
		if decodeData(env.Data, &data) && data.Customer != nil {
			if data.OldPhone != "" {
				delete(s.state.Customers, data.OldPhone)
			}
			s.state.Customers[data.Customer.Phone] = *data.Customer
		}
	}
}

// decodeData round-trips the envelope payload through JSON because a
// payload received off the wire arrives as map[string]any.
func decodeData(data any, out any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Mutate is the optimistic write path: apply locally, send with bounded
// retries, and on exhaustion roll the optimistic change back and return
// the error so the UI can tell the user. Rollback is unconditional;
// leaving uncommitted state on screen is how phantom orders happen.
func (s *Store) Mutate(ctx context.Context, apply func(*State), rollback func(*State), send func(ctx context.Context) error) error {
	s.mu.Lock()
	apply(&s.state)
	s.mu.Unlock()

	err := s.retry.Do(ctx, send)
	if err != nil {
		s.mu.Lock()
		rollback(&s.state)
		s.mu.Unlock()
	}
	return err
}
