package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/restaurant/internal/database"
	"github.com/kiwari-pos/restaurant/internal/enum"
	"github.com/kiwari-pos/restaurant/internal/metrics"
	"github.com/kiwari-pos/restaurant/internal/pos"
	"github.com/kiwari-pos/restaurant/internal/splitbill"
	"github.com/kiwari-pos/restaurant/internal/ws"
	"github.com/shopspring/decimal"
)

// Errors returned by the order and split services.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrSessionNotFound   = errors.New("split session not found")
	ErrLineNotFound      = splitbill.ErrLineNotFound
	ErrNothingSelected   = splitbill.ErrNothingSelected
	ErrSplitDisallowed   = splitbill.ErrSplitDisallowed
	ErrOrderMismatch     = splitbill.ErrOrderMismatch
	ErrEmptyLines        = errors.New("lines are required")
	ErrProductName       = errors.New("product_name is required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidPrice      = errors.New("unit_price must be a non-negative number")
	ErrInvalidTax        = errors.New("tax_percent must be a non-negative number")
	ErrNestedCombo       = errors.New("combo lines cannot contain combos")
	ErrTableNotFound     = errors.New("table not found in outlet")
	ErrOrderSplitAway    = errors.New("selected lines were already moved to another order")
	ErrInvalidGuestCount = errors.New("customer count must be >= 0")
)

// CreateOrderRequest is the input for opening an order.
type CreateOrderRequest struct {
	OutletID          uuid.UUID
	CreatedBy         uuid.UUID
	FloatingOrderName string
	TableID           string
	CustomerCount     int
	Note              string
	Lines             []CreateLineRequest
}

// CreateLineRequest is a single line. Combo holds the parts of a combo
// product and is only allowed one level deep.
type CreateLineRequest struct {
	ProductName string
	Category    string
	Quantity    string
	UnitPrice   string
	TaxPercent  string
	Groupable   bool
	Note        string
	Combo       []CreateLineRequest
}

// OrderUpdatedEvent is the payload of order.updated.
type OrderUpdatedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderName     string    `json:"order_name"`
	CustomerCount int       `json:"customer_count"`
	Booked        bool      `json:"booked"`
	Screen        string    `json:"screen"`
}

func orderEvent(o *pos.RestaurantOrder) OrderUpdatedEvent {
	return OrderUpdatedEvent{
		OrderID:       o.ID,
		OrderName:     o.OrderName(),
		CustomerCount: o.CustomerCount(),
		Booked:        o.UIState.Booked,
		Screen:        o.UIState.Screen,
	}
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	events   Broadcaster
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, events Broadcaster) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, events: events}
}

// CreateOrder validates the lines and inserts the order atomically.
// Retries up to maxTrackingNumberRetries times when a concurrent insert took
// the same tracking number.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*pos.RestaurantOrder, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyLines
	}
	if req.CustomerCount < 0 {
		return nil, ErrInvalidGuestCount
	}

	var tableID *uuid.UUID
	if req.TableID != "" {
		id, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrTableNotFound
		}
		tableID = &id
	}

	lines, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxTrackingNumberRetries; attempt++ {
		order, err := s.createOrderTx(ctx, req, tableID, lines)
		if err == nil {
			publish(s.events, order.OutletID, ws.EventOrderUpdated, orderEvent(order))
			return order, nil
		}
		if isTrackingNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// buildLines validates the request lines and flattens combos. Each combo
// part follows its parent and points at it.
func buildLines(reqs []CreateLineRequest) ([]*pos.Line, error) {
	var lines []*pos.Line
	for i, r := range reqs {
		parent, err := buildLine(r)
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", i, err)
		}
		lines = append(lines, parent)

		for j, c := range r.Combo {
			if len(c.Combo) > 0 {
				return nil, fmt.Errorf("lines[%d].combo[%d]: %w", i, j, ErrNestedCombo)
			}
			child, err := buildLine(c)
			if err != nil {
				return nil, fmt.Errorf("lines[%d].combo[%d]: %w", i, j, err)
			}
			child.ComboParentID = &parent.ID
			lines = append(lines, child)
		}
	}
	return lines, nil
}

func buildLine(r CreateLineRequest) (*pos.Line, error) {
	if r.ProductName == "" {
		return nil, ErrProductName
	}
	// Round to the column scale first so what is validated is what is stored.
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return nil, ErrInvalidQuantity
	}
	qty = qty.Round(quantityScale)
	if !qty.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	price, err := decimal.NewFromString(r.UnitPrice)
	if err != nil {
		return nil, ErrInvalidPrice
	}
	price = price.Round(moneyScale)
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	tax := decimal.Zero
	if r.TaxPercent != "" {
		tax, err = decimal.NewFromString(r.TaxPercent)
		if err != nil {
			return nil, ErrInvalidTax
		}
		tax = tax.Round(moneyScale)
		if tax.IsNegative() {
			return nil, ErrInvalidTax
		}
	}
	return &pos.Line{
		ID:          uuid.New(),
		ProductName: r.ProductName,
		Category:    r.Category,
		Quantity:    qty,
		UnitPrice:   price,
		TaxPercent:  tax,
		Groupable:   r.Groupable,
		Note:        r.Note,
	}, nil
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, tableID *uuid.UUID, lines []*pos.Line) (*pos.RestaurantOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cfg, err := loadConfig(ctx, store, req.OutletID)
	if err != nil {
		return nil, err
	}

	order := pos.NewRestaurantOrder(&pos.Order{
		OutletID:          req.OutletID,
		FloatingOrderName: req.FloatingOrderName,
		TableID:           tableID,
		Guests:            req.CustomerCount,
		Note:              req.Note,
		UIState:           pos.UIState{Screen: enum.ScreenProduct},
		CreatedBy:         req.CreatedBy,
	}, cfg)

	if tableID != nil {
		t, err := store.GetTable(ctx, database.GetTableParams{ID: *tableID, OutletID: req.OutletID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}
		order.Seat = tableFromDB(t)
	}

	row, err := insertOrder(ctx, store, order.Order)
	if err != nil {
		return nil, err
	}
	applyOrderRow(order.Order, row)

	if err := insertLines(ctx, store, order.Order, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// insertOrder takes the next tracking number and inserts o.
func insertOrder(ctx context.Context, store OrderStore, o *pos.Order) (database.Order, error) {
	next, err := store.GetNextTrackingNumber(ctx, o.OutletID)
	if err != nil {
		return database.Order{}, fmt.Errorf("get next tracking number: %w", err)
	}
	o.TrackingNumber = int(next)

	lastChange, err := encodeLastOrderChange(o.LastOrderChange)
	if err != nil {
		return database.Order{}, err
	}

	row, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OutletID:          o.OutletID,
		TrackingNumber:    next,
		FloatingOrderName: optText(o.FloatingOrderName),
		TableID:           optUUID(o.TableID),
		CustomerCount:     int32(o.Guests),
		Note:              optText(o.Note),
		SplitFromID:       optUUID(o.SplitFromID),
		ScreenName:        o.UIState.Screen,
		LastOrderChange:   lastChange,
		CreatedBy:         o.CreatedBy,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}
	return row, nil
}

// applyOrderRow copies the columns the database fills in.
func applyOrderRow(o *pos.Order, row database.Order) {
	o.ID = row.ID
	o.TrackingNumber = int(row.TrackingNumber)
	o.CreatedAt = row.CreatedAt
	o.UpdatedAt = row.UpdatedAt
}

func insertLines(ctx context.Context, store OrderStore, o *pos.Order, lines []*pos.Line) error {
	for i, l := range lines {
		l.OrderID = o.ID
		if _, err := store.CreateOrderLine(ctx, lineParams(l, i)); err != nil {
			return fmt.Errorf("create order line %d: %w", i, err)
		}
	}
	o.Lines = lines
	return nil
}

// GetOrder loads an order with its lines, table and outlet config.
func (s *OrderService) GetOrder(ctx context.Context, outletID, orderID uuid.UUID) (*pos.RestaurantOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return loadOrder(ctx, s.newStore(tx), outletID, orderID, false)
}

// SetCustomerCount stores the guest count, clamped to at least zero.
func (s *OrderService) SetCustomerCount(ctx context.Context, outletID, orderID uuid.UUID, count int) (*pos.RestaurantOrder, error) {
	return s.update(ctx, outletID, orderID, func(store OrderStore, order *pos.RestaurantOrder) error {
		order.SetCustomerCount(count)
		_, err := store.UpdateOrderCustomerCount(ctx, database.UpdateOrderCustomerCountParams{
			ID:            order.ID,
			OutletID:      order.OutletID,
			CustomerCount: int32(order.CustomerCount()),
		})
		if err != nil {
			return fmt.Errorf("update customer count: %w", err)
		}
		return nil
	})
}

func (s *OrderService) SetBooked(ctx context.Context, outletID, orderID uuid.UUID, booked bool) (*pos.RestaurantOrder, error) {
	return s.update(ctx, outletID, orderID, func(store OrderStore, order *pos.RestaurantOrder) error {
		order.SetBooked(booked)
		_, err := store.UpdateOrderBooked(ctx, database.UpdateOrderBookedParams{
			ID:       order.ID,
			OutletID: order.OutletID,
			Booked:   booked,
		})
		if err != nil {
			return fmt.Errorf("update booked: %w", err)
		}
		return nil
	})
}

// update runs fn on the locked order inside one transaction and announces
// the result to the outlet.
func (s *OrderService) update(ctx context.Context, outletID, orderID uuid.UUID, fn func(OrderStore, *pos.RestaurantOrder) error) (*pos.RestaurantOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := loadOrder(ctx, store, outletID, orderID, true)
	if err != nil {
		return nil, err
	}
	if err := fn(store, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	publish(s.events, outletID, ws.EventOrderUpdated, orderEvent(order))
	return order, nil
}

// Receipt builds the printing payload. cashierID names the user on the
// header; an unknown user leaves the name empty.
func (s *OrderService) Receipt(ctx context.Context, outletID, orderID, cashierID uuid.UUID) (*pos.Receipt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := loadOrder(ctx, store, outletID, orderID, false)
	if err != nil {
		return nil, err
	}

	outlet, err := store.GetOutlet(ctx, outletID)
	if err != nil {
		return nil, fmt.Errorf("get outlet: %w", err)
	}
	header := pos.ReceiptHeader{OutletName: outlet.Name}

	user, err := store.GetUserByID(ctx, cashierID)
	switch {
	case err == nil:
		header.Cashier = user.FullName
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get cashier: %w", err)
	}

	receipt := order.ExportForPrinting(header)
	return &receipt, nil
}

// SendToKitchen records the unsent changes as sent and pushes the ticket to
// the outlet's terminals. An empty ticket changes nothing.
func (s *OrderService) SendToKitchen(ctx context.Context, outletID, orderID uuid.UUID) (pos.KitchenTicket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pos.KitchenTicket{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := loadOrder(ctx, store, outletID, orderID, true)
	if err != nil {
		return pos.KitchenTicket{}, err
	}

	ticket := order.KitchenTicket()
	if ticket.Empty() {
		return ticket, nil
	}

	order.UpdateLastOrderChange()
	if err := saveLastOrderChange(ctx, store, order.Order); err != nil {
		return pos.KitchenTicket{}, fmt.Errorf("save last order change: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return pos.KitchenTicket{}, fmt.Errorf("commit tx: %w", err)
	}

	metrics.KitchenTicketsSent.Inc()
	publish(s.events, outletID, ws.EventOrderKitchen, ticket)
	return ticket, nil
}
