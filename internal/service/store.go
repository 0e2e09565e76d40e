package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/restaurant/internal/database"
	"github.com/kiwari-pos/restaurant/internal/pos"
	"github.com/kiwari-pos/restaurant/internal/ws"
	"github.com/shopspring/decimal"
)

const maxTrackingNumberRetries = 3

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order and split services need.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextTrackingNumber(ctx context.Context, outletID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	UpdateOrderCustomerCount(ctx context.Context, arg database.UpdateOrderCustomerCountParams) (database.Order, error)
	UpdateOrderBooked(ctx context.Context, arg database.UpdateOrderBookedParams) (database.Order, error)
	UpdateOrderScreen(ctx context.Context, arg database.UpdateOrderScreenParams) error
	UpdateOrderLastChange(ctx context.Context, arg database.UpdateOrderLastChangeParams) error

	ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	UpdateOrderLineQuantity(ctx context.Context, arg database.UpdateOrderLineQuantityParams) (database.OrderLine, error)
	DeleteOrderLine(ctx context.Context, arg database.DeleteOrderLineParams) error

	GetPosConfig(ctx context.Context, outletID uuid.UUID) (database.PosConfig, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.GetTableRow, error)
	GetOutlet(ctx context.Context, id uuid.UUID) (database.Outlet, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// QueriesStore is the NewOrderStore backed by the generated queries.
func QueriesStore(db database.DBTX) OrderStore {
	return database.New(db)
}

// Broadcaster pushes events to the terminals of an outlet.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToOutlet(outletID uuid.UUID, event ws.Event)
}

func publish(b Broadcaster, outletID uuid.UUID, eventType string, payload any) {
	if b == nil {
		return
	}
	ev, err := ws.NewEvent(eventType, payload)
	if err != nil {
		slog.Error("build order event", "type", eventType, "error", err)
		return
	}
	b.BroadcastToOutlet(outletID, ev)
}

// isTrackingNumberConflict reports a unique violation on the per-outlet
// tracking number, which happens when two transactions read the same MAX.
func isTrackingNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_outlet_id_tracking_number_key"
	}
	return false
}

// loadOrder reads the order with its lines, table and outlet config. With
// forUpdate the order row stays locked until the transaction ends.
func loadOrder(ctx context.Context, store OrderStore, outletID, orderID uuid.UUID, forUpdate bool) (*pos.RestaurantOrder, error) {
	get := store.GetOrder
	if forUpdate {
		get = store.GetOrderForUpdate
	}
	row, err := get(ctx, database.GetOrderParams{ID: orderID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := store.ListOrderLinesByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}

	order, err := orderFromDB(row, lines)
	if err != nil {
		return nil, err
	}

	if order.TableID != nil {
		t, err := store.GetTable(ctx, database.GetTableParams{ID: *order.TableID, OutletID: outletID})
		if err != nil {
			return nil, fmt.Errorf("get table: %w", err)
		}
		order.Seat = tableFromDB(t)
	}

	cfg, err := loadConfig(ctx, store, outletID)
	if err != nil {
		return nil, err
	}

	// Stored orders keep their guest count; the restaurant default only
	// applies when an order is created.
	return &pos.RestaurantOrder{Order: order, Config: cfg}, nil
}

// loadConfig returns the outlet's POS config. An outlet without a row runs
// with everything off.
func loadConfig(ctx context.Context, store OrderStore, outletID uuid.UUID) (pos.Config, error) {
	row, err := store.GetPosConfig(ctx, outletID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pos.Config{}, nil
		}
		return pos.Config{}, fmt.Errorf("get pos config: %w", err)
	}
	return pos.Config{
		ModuleRestaurant:      row.ModuleRestaurant,
		SetTipAfterPayment:    row.SetTipAfterPayment,
		PreparationCategories: row.PreparationCategories,
	}, nil
}

func saveLastOrderChange(ctx context.Context, store OrderStore, o *pos.Order) error {
	b, err := encodeLastOrderChange(o.LastOrderChange)
	if err != nil {
		return err
	}
	return store.UpdateOrderLastChange(ctx, database.UpdateOrderLastChangeParams{
		ID:              o.ID,
		OutletID:        o.OutletID,
		LastOrderChange: b,
	})
}

// --- Conversions ---

func orderFromDB(row database.Order, lines []database.OrderLine) (*pos.Order, error) {
	o := &pos.Order{
		ID:                row.ID,
		OutletID:          row.OutletID,
		TrackingNumber:    int(row.TrackingNumber),
		FloatingOrderName: row.FloatingOrderName.String,
		TableID:           uuidPtr(row.TableID),
		Guests:            int(row.CustomerCount),
		Note:              row.Note.String,
		SplitFromID:       uuidPtr(row.SplitFromID),
		UIState:           pos.UIState{Screen: row.ScreenName, Booked: row.Booked},
		CreatedBy:         row.CreatedBy,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}

	if len(row.LastOrderChange) > 0 {
		if err := json.Unmarshal(row.LastOrderChange, &o.LastOrderChange); err != nil {
			return nil, fmt.Errorf("decode last order change: %w", err)
		}
	}

	o.Lines = make([]*pos.Line, len(lines))
	for i, l := range lines {
		o.Lines[i] = lineFromDB(l)
	}
	return o, nil
}

func lineFromDB(l database.OrderLine) *pos.Line {
	return &pos.Line{
		ID:            l.ID,
		OrderID:       l.OrderID,
		ProductName:   l.ProductName,
		Category:      l.Category.String,
		Quantity:      numericToDecimal(l.Quantity),
		UnitPrice:     numericToDecimal(l.UnitPrice),
		TaxPercent:    numericToDecimal(l.TaxPercent),
		Groupable:     l.Groupable,
		ComboParentID: uuidPtr(l.ComboParentID),
		Note:          l.Note.String,
	}
}

func lineParams(l *pos.Line, position int) database.CreateOrderLineParams {
	return database.CreateOrderLineParams{
		ID:            l.ID,
		OrderID:       l.OrderID,
		ProductName:   l.ProductName,
		Category:      optText(l.Category),
		Quantity:      quantityToNumeric(l.Quantity),
		UnitPrice:     decimalToNumeric(l.UnitPrice),
		TaxPercent:    decimalToNumeric(l.TaxPercent),
		Groupable:     l.Groupable,
		ComboParentID: optUUID(l.ComboParentID),
		Note:          optText(l.Note),
		Position:      int32(position),
	}
}

func tableFromDB(t database.GetTableRow) *pos.Table {
	return &pos.Table{
		ID:          t.ID,
		FloorID:     t.FloorID,
		FloorName:   t.FloorName,
		TableNumber: int(t.TableNumber),
		Seats:       int(t.Seats),
	}
}

func encodeLastOrderChange(m map[uuid.UUID]pos.LineSnapshot) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode last order change: %w", err)
	}
	return b, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Scales of the order_lines numeric columns.
const (
	quantityScale = 3
	moneyScale    = 2
)

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(moneyScale))
	return n
}

// quantityToNumeric keeps the three decimals order_lines.quantity stores.
func quantityToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(quantityScale))
	return n
}

func optText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func optUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}
