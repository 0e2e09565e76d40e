package pos

import (
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UIState holds terminal-side state persisted with the order.
type UIState struct {
	Screen string `json:"screen"`
	Booked bool   `json:"booked"`
}

// Order is a mutable aggregate of lines.
type Order struct {
	ID                uuid.UUID
	OutletID          uuid.UUID
	TrackingNumber    int
	FloatingOrderName string
	TableID           *uuid.UUID
	Seat              *Table
	Guests            int
	Note              string
	SplitFromID       *uuid.UUID
	UIState           UIState
	LastOrderChange   map[uuid.UUID]LineSnapshot
	Lines             []*Line
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Line returns the line with the given ID, or nil.
func (o *Order) Line(id uuid.UUID) *Line {
	for _, l := range o.Lines {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// ComboChildren returns the lines whose combo parent is parentID, in order.
func (o *Order) ComboChildren(parentID uuid.UUID) []*Line {
	var children []*Line
	for _, l := range o.Lines {
		if l.ComboParentID != nil && *l.ComboParentID == parentID {
			children = append(children, l)
		}
	}
	return children
}

// AllLinesInCombo expands l to every line of its combo group. A child line
// resolves to its parent's group; a line outside any combo returns itself.
func (o *Order) AllLinesInCombo(l *Line) []*Line {
	if l.ComboParentID != nil {
		if parent := o.Line(*l.ComboParentID); parent != nil {
			return o.AllLinesInCombo(parent)
		}
		return []*Line{l}
	}
	return append([]*Line{l}, o.ComboChildren(l.ID)...)
}

// RemoveLine drops the line from the order. Children of a removed combo
// parent lose their parent reference.
func (o *Order) RemoveLine(id uuid.UUID) {
	o.Lines = slices.DeleteFunc(o.Lines, func(l *Line) bool { return l.ID == id })
	for _, l := range o.Lines {
		if l.ComboParentID != nil && *l.ComboParentID == id {
			l.ComboParentID = nil
		}
	}
}

func (o *Order) TotalWithTax() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.PriceWithTax())
	}
	return total
}

// TotalDue is the amount still owed. Payments are not tracked, so it equals
// TotalWithTax.
func (o *Order) TotalDue() decimal.Decimal {
	return o.TotalWithTax()
}

// FloatingName names an order that is not seated at a table.
func (o *Order) FloatingName() string {
	if o.FloatingOrderName != "" {
		return o.FloatingOrderName
	}
	if o.TrackingNumber > 0 {
		return strconv.Itoa(o.TrackingNumber)
	}
	return ""
}
