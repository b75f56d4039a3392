package lifecycle

// Status is the order-level state. Transitions only move forward;
// SERVED and CANCELLED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusServed    Status = "SERVED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusServed},
	StatusServed:    {},
	StatusCancelled: {},
}

func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InitialStatus decides the state a freshly created order starts in.
// Waiter orders skip counter acceptance when both the kitchen display
// and kitchen order ticket settings are on.
func InitialStatus(kdsEnabled, kotEnabled, waiterOrder bool) Status {
	if kdsEnabled && kotEnabled && waiterOrder {
		return StatusAccepted
	}
	return StatusPending
}

// ItemStatus is the per-line preparation sub-status.
type ItemStatus string

const (
	ItemQueued    ItemStatus = "QUEUED"
	ItemPreparing ItemStatus = "PREPARING"
	ItemReady     ItemStatus = "READY"
)

func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemQueued, ItemPreparing, ItemReady:
		return true
	}
	return false
}

type ItemProgress struct {
	Status       ItemStatus
	CompletedQty int32
	Quantity     int32
}

// ItemDone reports whether a single line counts as ready, either by its
// sub-status or by its completed counter covering the full quantity.
func ItemDone(p ItemProgress) bool {
	if p.Status == ItemReady {
		return true
	}
	return p.Quantity > 0 && p.CompletedQty >= p.Quantity
}

// AllItemsReady drives item-derived promotion: once every line is done
// the parent order is promoted to READY. Recomputed on every item update.
func AllItemsReady(items []ItemProgress) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !ItemDone(item) {
			return false
		}
	}
	return true
}

// PromotionTarget returns the status an order should be derived into
// after an item update, or "" when no promotion applies.
func PromotionTarget(current Status, items []ItemProgress) Status {
	if current != StatusAccepted && current != StatusPreparing {
		return ""
	}
	if AllItemsReady(items) {
		return StatusReady
	}
	if current == StatusAccepted {
		for _, item := range items {
			if item.Status == ItemPreparing || item.Status == ItemReady || item.CompletedQty > 0 {
				return StatusPreparing
			}
		}
	}
	return ""
}
