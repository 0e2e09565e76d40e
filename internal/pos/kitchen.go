package pos

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineSnapshot is the state of a line when it was last sent to the kitchen.
type LineSnapshot struct {
	ProductName string          `json:"product_name"`
	Category    string          `json:"category,omitempty"`
	Quantity    decimal.Decimal `json:"qty"`
	Note        string          `json:"note,omitempty"`
}

// KitchenChange is a quantity delta for one line. Quantity is always
// positive; whether it was added or removed depends on the ticket list.
type KitchenChange struct {
	LineID      uuid.UUID       `json:"line_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"qty"`
	Note        string          `json:"note,omitempty"`
}

type KitchenTicket struct {
	OrderID   uuid.UUID       `json:"order_id"`
	OrderName string          `json:"order_name"`
	Added     []KitchenChange `json:"added"`
	Removed   []KitchenChange `json:"removed"`
}

func (t KitchenTicket) Empty() bool {
	return len(t.Added) == 0 && len(t.Removed) == 0
}

// Changes diffs the current lines against LastOrderChange. Lines outside
// the configured preparation categories never reach the kitchen.
func (o *Order) Changes(cfg Config) KitchenTicket {
	ticket := KitchenTicket{OrderID: o.ID}
	if !cfg.HasPreparationCategories() {
		return ticket
	}

	seen := make(map[uuid.UUID]bool, len(o.Lines))
	for _, l := range o.Lines {
		seen[l.ID] = true
		if !cfg.IsPreparationCategory(l.Category) {
			continue
		}
		delta := l.Quantity.Sub(o.LastOrderChange[l.ID].Quantity)
		change := KitchenChange{
			LineID:      l.ID,
			ProductName: l.ProductName,
			Category:    l.Category,
			Quantity:    delta.Abs(),
			Note:        l.Note,
		}
		switch delta.Sign() {
		case 1:
			ticket.Added = append(ticket.Added, change)
		case -1:
			ticket.Removed = append(ticket.Removed, change)
		}
	}

	var gone []KitchenChange
	for id, snap := range o.LastOrderChange {
		if seen[id] || !cfg.IsPreparationCategory(snap.Category) || !snap.Quantity.IsPositive() {
			continue
		}
		gone = append(gone, KitchenChange{
			LineID:      id,
			ProductName: snap.ProductName,
			Category:    snap.Category,
			Quantity:    snap.Quantity,
			Note:        snap.Note,
		})
	}
	sort.Slice(gone, func(i, j int) bool {
		if gone[i].ProductName != gone[j].ProductName {
			return gone[i].ProductName < gone[j].ProductName
		}
		return gone[i].LineID.String() < gone[j].LineID.String()
	})
	ticket.Removed = append(ticket.Removed, gone...)
	return ticket
}

// UpdateLastOrderChange records the current lines as already sent.
func (o *Order) UpdateLastOrderChange() {
	o.LastOrderChange = make(map[uuid.UUID]LineSnapshot, len(o.Lines))
	for _, l := range o.Lines {
		o.LastOrderChange[l.ID] = l.Snapshot()
	}
}
