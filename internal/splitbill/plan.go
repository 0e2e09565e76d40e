package splitbill

import (
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/pos"
	"github.com/shopspring/decimal"
)

type QtyUpdate struct {
	LineID   uuid.UUID
	Quantity decimal.Decimal
}

// CommitPlan is everything a split writes: lines for the new order and the
// reductions on the original.
type CommitPlan struct {
	OrderID  uuid.UUID
	NewLines []pos.Line
	Updates  []QtyUpdate
	Deletes  []uuid.UUID
}

// MovedQuantity sums the quantities carried into the new order.
func (p CommitPlan) MovedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.NewLines {
		total = total.Add(l.Quantity)
	}
	return total
}

// Plan turns the current selection into a CommitPlan against order. A line
// is deleted from the original when all of it moves, otherwise reduced.
// Selections larger than the line (the line shrank since the tap) are
// capped at the line quantity.
func (s *Session) Plan(order *pos.Order) (CommitPlan, error) {
	if order.ID != s.OrderID {
		return CommitPlan{}, ErrOrderMismatch
	}
	if s.Disallow {
		return CommitPlan{}, ErrSplitDisallowed
	}

	plan := CommitPlan{OrderID: order.ID}
	newIDs := make(map[uuid.UUID]uuid.UUID)

	for _, l := range order.Lines {
		sel := s.qty[l.ID]
		if sel.IsNegative() {
			return CommitPlan{}, errNegativeQuantity
		}
		if sel.IsZero() {
			continue
		}
		sel = decimal.Min(sel, l.Quantity)

		moved := *l
		moved.ID = uuid.New()
		moved.OrderID = uuid.Nil
		moved.Quantity = sel
		newIDs[l.ID] = moved.ID
		plan.NewLines = append(plan.NewLines, moved)

		if sel.Equal(l.Quantity) {
			plan.Deletes = append(plan.Deletes, l.ID)
		} else {
			plan.Updates = append(plan.Updates, QtyUpdate{LineID: l.ID, Quantity: l.Quantity.Sub(sel)})
		}
	}

	if len(plan.NewLines) == 0 {
		return CommitPlan{}, ErrNothingSelected
	}

	for i := range plan.NewLines {
		parent := plan.NewLines[i].ComboParentID
		if parent == nil {
			continue
		}
		if id, ok := newIDs[*parent]; ok {
			plan.NewLines[i].ComboParentID = &id
		} else {
			plan.NewLines[i].ComboParentID = nil
		}
	}

	return plan, nil
}

// ApplyToOriginal mutates order the way the plan changes it in storage.
func (p CommitPlan) ApplyToOriginal(order *pos.Order) {
	for _, u := range p.Updates {
		if l := order.Line(u.LineID); l != nil {
			l.Quantity = u.Quantity
		}
	}
	for _, id := range p.Deletes {
		order.RemoveLine(id)
	}
}
