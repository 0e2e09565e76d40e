package pos

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Seating is the restaurant capability of an order: guests, table and the
// name a floor plan shows for it.
type Seating interface {
	CustomerCount() int
	SetCustomerCount(count int)
	AmountPerGuest() decimal.Decimal
	Table() *Table
	SetBooked(booked bool)
	OrderName() string
}

var _ Seating = (*RestaurantOrder)(nil)

// RestaurantOrder extends an Order with the fields restaurant mode adds.
// With ModuleRestaurant off it still answers, but Table is always nil and
// the guest count gets no default.
type RestaurantOrder struct {
	*Order
	Config Config
}

// NewRestaurantOrder wraps o. In restaurant mode an order without guests
// starts with one.
func NewRestaurantOrder(o *Order, cfg Config) *RestaurantOrder {
	if cfg.ModuleRestaurant && o.Guests == 0 {
		o.Guests = 1
	}
	return &RestaurantOrder{Order: o, Config: cfg}
}

func (r *RestaurantOrder) CustomerCount() int {
	return r.Guests
}

// SetCustomerCount stores count, clamped to zero.
func (r *RestaurantOrder) SetCustomerCount(count int) {
	r.Guests = max(count, 0)
}

func (r *RestaurantOrder) AmountPerGuest() decimal.Decimal {
	return r.AmountPerGuestFor(r.Guests)
}

// AmountPerGuestFor divides the amount due between guests. Zero guests
// owe nothing.
func (r *RestaurantOrder) AmountPerGuestFor(guests int) decimal.Decimal {
	if guests <= 0 {
		return decimal.Zero
	}
	return r.TotalDue().Div(decimal.NewFromInt(int64(guests)))
}

func (r *RestaurantOrder) Table() *Table {
	if !r.Config.ModuleRestaurant {
		return nil
	}
	return r.Seat
}

func (r *RestaurantOrder) SetBooked(booked bool) {
	r.UIState.Booked = booked
}

// OrderName is the table number when seated, else the floating name.
func (r *RestaurantOrder) OrderName() string {
	if r.Seat != nil {
		return strconv.Itoa(r.Seat.TableNumber)
	}
	return r.FloatingName()
}

// ExportForPrinting adds the restaurant flags to the base receipt and names
// it the way the floor plan does.
func (r *RestaurantOrder) ExportForPrinting(header ReceiptHeader) Receipt {
	receipt := r.Order.ExportForPrinting(header)
	receipt.Name = r.OrderName()
	receipt.SetTipAfterPayment = r.Config.SetTipAfterPayment
	receipt.IsRestaurant = r.Config.ModuleRestaurant
	return receipt
}

// KitchenTicket returns the unsent changes, named the way the floor sees
// the order.
func (r *RestaurantOrder) KitchenTicket() KitchenTicket {
	ticket := r.Changes(r.Config)
	ticket.OrderName = r.OrderName()
	return ticket
}
