// Package splitbill holds the per-screen state of a bill split: which part
// of each line goes to the new order and what that part costs.
package splitbill

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/pos"
	"github.com/shopspring/decimal"
)

var (
	ErrLineNotFound     = errors.New("line not found in order")
	ErrOrderMismatch    = errors.New("split session belongs to another order")
	ErrNothingSelected  = errors.New("no lines selected for the new order")
	ErrSplitDisallowed  = errors.New("splitting is not allowed for this session")
	errNegativeQuantity = errors.New("selected quantity is negative")
)

var one = decimal.NewFromInt(1)

// Session is one split-bill screen. Trackers are keyed by line ID and live
// as long as the screen does.
type Session struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	OutletID  uuid.UUID
	OpenedBy  uuid.UUID
	Disallow  bool
	CreatedAt time.Time

	qty   map[uuid.UUID]decimal.Decimal
	price map[uuid.UUID]decimal.Decimal
}

func NewSession(order *pos.Order, openedBy uuid.UUID, disallow bool) *Session {
	return &Session{
		ID:        uuid.New(),
		OrderID:   order.ID,
		OutletID:  order.OutletID,
		OpenedBy:  openedBy,
		Disallow:  disallow,
		CreatedAt: time.Now(),
		qty:       make(map[uuid.UUID]decimal.Decimal),
		price:     make(map[uuid.UUID]decimal.Decimal),
	}
}

// Toggle changes the selection of the tapped line and, for a combo, of
// every line in the same combo.
func (s *Session) Toggle(order *pos.Order, lineID uuid.UUID) error {
	if order.ID != s.OrderID {
		return ErrOrderMismatch
	}
	line := order.Line(lineID)
	if line == nil {
		return fmt.Errorf("toggle %s: %w", lineID, ErrLineNotFound)
	}
	for _, l := range order.AllLinesInCombo(line) {
		s.toggleLine(l)
	}
	return nil
}

// toggleLine moves a non-groupable line between nothing and everything. A
// groupable line steps one unit per tap and wraps to zero after full.
func (s *Session) toggleLine(l *pos.Line) {
	cur := s.qty[l.ID]
	full := l.Quantity

	var next decimal.Decimal
	switch {
	case !l.Groupable:
		if !cur.Equal(full) {
			next = full
		}
	case cur.IsZero():
		next = decimal.Min(one, full)
	case cur.GreaterThanOrEqual(full):
		next = decimal.Zero
	default:
		next = decimal.Min(cur.Add(one), full)
	}

	s.qty[l.ID] = next
	s.price[l.ID] = l.PriceFor(next)
}

// Selected returns the quantity of the line picked for the new order.
func (s *Session) Selected(lineID uuid.UUID) decimal.Decimal {
	return s.qty[lineID]
}

// SelectedPrice returns the proportional price of the picked quantity.
func (s *Session) SelectedPrice(lineID uuid.UUID) decimal.Decimal {
	return s.price[lineID]
}

func (s *Session) HasSelection() bool {
	for _, q := range s.qty {
		if q.IsPositive() {
			return true
		}
	}
	return false
}

// NewOrderPrice is the total the new order will carry.
func (s *Session) NewOrderPrice() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.price {
		total = total.Add(p)
	}
	return total
}

// LineData renders the line, showing "<selected> / <original>" as the
// quantity while part of it is picked.
func (s *Session) LineData(l *pos.Line) pos.DisplayData {
	data := l.DisplayData()
	if sel := s.qty[l.ID]; !sel.IsZero() {
		data.Quantity = sel.String() + " / " + l.QuantityString()
	}
	return data
}

// SplitNote is the note stamped on an order created by a split.
func SplitNote(trackingNumber int, originalName string) string {
	return fmt.Sprintf("%d Split from %s", trackingNumber, originalName)
}
