package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderLineColumns = `id, order_id, product_name, category, quantity, unit_price, tax_percent, groupable, combo_parent_id, note, position, created_at`

func scanOrderLine(row interface{ Scan(dest ...any) error }) (OrderLine, error) {
	var i OrderLine
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductName,
		&i.Category,
		&i.Quantity,
		&i.UnitPrice,
		&i.TaxPercent,
		&i.Groupable,
		&i.ComboParentID,
		&i.Note,
		&i.Position,
		&i.CreatedAt,
	)
	return i, err
}

const listOrderLinesByOrder = `-- name: ListOrderLinesByOrder :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE order_id = $1
ORDER BY position, created_at
`

func (q *Queries) ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, listOrderLinesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderLine{}
	for rows.Next() {
		i, err := scanOrderLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrderLine = `-- name: CreateOrderLine :one
INSERT INTO order_lines (
    id, order_id, product_name, category, quantity, unit_price, tax_percent,
    groupable, combo_parent_id, note, position
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + orderLineColumns

type CreateOrderLineParams struct {
	ID            uuid.UUID      `json:"id"`
	OrderID       uuid.UUID      `json:"order_id"`
	ProductName   string         `json:"product_name"`
	Category      pgtype.Text    `json:"category"`
	Quantity      pgtype.Numeric `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	TaxPercent    pgtype.Numeric `json:"tax_percent"`
	Groupable     bool           `json:"groupable"`
	ComboParentID pgtype.UUID    `json:"combo_parent_id"`
	Note          pgtype.Text    `json:"note"`
	Position      int32          `json:"position"`
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.ID,
		arg.OrderID,
		arg.ProductName,
		arg.Category,
		arg.Quantity,
		arg.UnitPrice,
		arg.TaxPercent,
		arg.Groupable,
		arg.ComboParentID,
		arg.Note,
		arg.Position,
	)
	return scanOrderLine(row)
}

const updateOrderLineQuantity = `-- name: UpdateOrderLineQuantity :one
UPDATE order_lines SET quantity = $3
WHERE id = $1 AND order_id = $2
RETURNING ` + orderLineColumns

type UpdateOrderLineQuantityParams struct {
	ID       uuid.UUID      `json:"id"`
	OrderID  uuid.UUID      `json:"order_id"`
	Quantity pgtype.Numeric `json:"quantity"`
}

func (q *Queries) UpdateOrderLineQuantity(ctx context.Context, arg UpdateOrderLineQuantityParams) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, updateOrderLineQuantity, arg.ID, arg.OrderID, arg.Quantity))
}

const deleteOrderLine = `-- name: DeleteOrderLine :exec
DELETE FROM order_lines
WHERE id = $1 AND order_id = $2
`

type DeleteOrderLineParams struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
}

// DeleteOrderLine returns pgx.ErrNoRows when nothing matched.
func (q *Queries) DeleteOrderLine(ctx context.Context, arg DeleteOrderLineParams) error {
	tag, err := q.db.Exec(ctx, deleteOrderLine, arg.ID, arg.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
