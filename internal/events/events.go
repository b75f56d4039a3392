// Package events defines the typed change events every committed mutation
// emits. The same envelope is fanned out to websocket clients and mirrored
// to the message queue, so both sides share one vocabulary.
package events

import "time"

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	OrderItemUpdated   Type = "order.item_updated"
	BillCreated        Type = "bill.created"
	BillPaid           Type = "bill.paid"
	CustomerUpdated    Type = "customer.updated"
	InventoryUpdated   Type = "inventory.updated"
	WaiterCallRaised   Type = "waiter.call_raised"
	WaiterCallResolved Type = "waiter.call_resolved"
	SettingsUpdated    Type = "settings.updated"
)

// Envelope is what goes over the wire. Seq is a process-wide monotonic
// sequence; a client whose last-seen seq does not immediately precede an
// incoming one knows it missed events and must do a full resync.
type Envelope struct {
	Seq  uint64    `json:"seq"`
	Type Type      `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// RoutingKey maps an event type onto the queue topic space
// (e.g. "order.status_changed" stays as-is under the "dinetab.events"
// topic exchange, matched by the "order.#" style bindings).
func (t Type) RoutingKey() string {
	return string(t)
}
