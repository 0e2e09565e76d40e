package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, outlet_id, tracking_number, floating_order_name, table_id, customer_count, note, split_from_id, screen_name, booked, last_order_change, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.TrackingNumber,
		&i.FloatingOrderName,
		&i.TableID,
		&i.CustomerCount,
		&i.Note,
		&i.SplitFromID,
		&i.ScreenName,
		&i.Booked,
		&i.LastOrderChange,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextTrackingNumber = `-- name: GetNextTrackingNumber :one
SELECT (COALESCE(MAX(tracking_number), 100) + 1)::int AS next FROM orders
WHERE outlet_id = $1
`

func (q *Queries) GetNextTrackingNumber(ctx context.Context, outletID uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getNextTrackingNumber, outletID)
	var next int32
	err := row.Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    outlet_id, tracking_number, floating_order_name, table_id, customer_count,
    note, split_from_id, screen_name, last_order_change, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OutletID          uuid.UUID   `json:"outlet_id"`
	TrackingNumber    int32       `json:"tracking_number"`
	FloatingOrderName pgtype.Text `json:"floating_order_name"`
	TableID           pgtype.UUID `json:"table_id"`
	CustomerCount     int32       `json:"customer_count"`
	Note              pgtype.Text `json:"note"`
	SplitFromID       pgtype.UUID `json:"split_from_id"`
	ScreenName        string      `json:"screen_name"`
	LastOrderChange   []byte      `json:"last_order_change"`
	CreatedBy         uuid.UUID   `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OutletID,
		arg.TrackingNumber,
		arg.FloatingOrderName,
		arg.TableID,
		arg.CustomerCount,
		arg.Note,
		arg.SplitFromID,
		arg.ScreenName,
		arg.LastOrderChange,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1 AND outlet_id = $2
`

type GetOrderParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.OutletID))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1 AND outlet_id = $2
FOR UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.OutletID))
}

const updateOrderCustomerCount = `-- name: UpdateOrderCustomerCount :one
UPDATE orders SET customer_count = $3, updated_at = now()
WHERE id = $1 AND outlet_id = $2
RETURNING ` + orderColumns

type UpdateOrderCustomerCountParams struct {
	ID            uuid.UUID `json:"id"`
	OutletID      uuid.UUID `json:"outlet_id"`
	CustomerCount int32     `json:"customer_count"`
}

func (q *Queries) UpdateOrderCustomerCount(ctx context.Context, arg UpdateOrderCustomerCountParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderCustomerCount, arg.ID, arg.OutletID, arg.CustomerCount))
}

const updateOrderBooked = `-- name: UpdateOrderBooked :one
UPDATE orders SET booked = $3, updated_at = now()
WHERE id = $1 AND outlet_id = $2
RETURNING ` + orderColumns

type UpdateOrderBookedParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
	Booked   bool      `json:"booked"`
}

func (q *Queries) UpdateOrderBooked(ctx context.Context, arg UpdateOrderBookedParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderBooked, arg.ID, arg.OutletID, arg.Booked))
}

const updateOrderScreen = `-- name: UpdateOrderScreen :exec
UPDATE orders SET screen_name = $3, updated_at = now()
WHERE id = $1 AND outlet_id = $2
`

type UpdateOrderScreenParams struct {
	ID         uuid.UUID `json:"id"`
	OutletID   uuid.UUID `json:"outlet_id"`
	ScreenName string    `json:"screen_name"`
}

func (q *Queries) UpdateOrderScreen(ctx context.Context, arg UpdateOrderScreenParams) error {
	_, err := q.db.Exec(ctx, updateOrderScreen, arg.ID, arg.OutletID, arg.ScreenName)
	return err
}

const updateOrderLastChange = `-- name: UpdateOrderLastChange :exec
UPDATE orders SET last_order_change = $3, updated_at = now()
WHERE id = $1 AND outlet_id = $2
`

type UpdateOrderLastChangeParams struct {
	ID              uuid.UUID `json:"id"`
	OutletID        uuid.UUID `json:"outlet_id"`
	LastOrderChange []byte    `json:"last_order_change"`
}

func (q *Queries) UpdateOrderLastChange(ctx context.Context, arg UpdateOrderLastChangeParams) error {
	_, err := q.db.Exec(ctx, updateOrderLastChange, arg.ID, arg.OutletID, arg.LastOrderChange)
	return err
}
