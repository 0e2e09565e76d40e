package database

import (
	"context"

	"github.com/google/uuid"
)

const getTable = `-- name: GetTable :one
SELECT t.id, t.outlet_id, t.floor_id, t.table_number, t.seats, f.name AS floor_name
FROM restaurant_tables t
JOIN floors f ON f.id = t.floor_id
WHERE t.id = $1 AND t.outlet_id = $2
`

type GetTableParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

type GetTableRow struct {
	ID          uuid.UUID `json:"id"`
	OutletID    uuid.UUID `json:"outlet_id"`
	FloorID     uuid.UUID `json:"floor_id"`
	TableNumber int32     `json:"table_number"`
	Seats       int32     `json:"seats"`
	FloorName   string    `json:"floor_name"`
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (GetTableRow, error) {
	row := q.db.QueryRow(ctx, getTable, arg.ID, arg.OutletID)
	var i GetTableRow
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.FloorID,
		&i.TableNumber,
		&i.Seats,
		&i.FloorName,
	)
	return i, err
}

const listFloors = `-- name: ListFloors :many
SELECT id, outlet_id, name, sort_order FROM floors
WHERE outlet_id = $1
ORDER BY sort_order, name
`

func (q *Queries) ListFloors(ctx context.Context, outletID uuid.UUID) ([]Floor, error) {
	rows, err := q.db.Query(ctx, listFloors, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Floor{}
	for rows.Next() {
		var i Floor
		if err := rows.Scan(
			&i.ID,
			&i.OutletID,
			&i.Name,
			&i.SortOrder,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTablesByOutlet = `-- name: ListTablesByOutlet :many
SELECT id, outlet_id, floor_id, table_number, seats FROM restaurant_tables
WHERE outlet_id = $1
ORDER BY table_number
`

func (q *Queries) ListTablesByOutlet(ctx context.Context, outletID uuid.UUID) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, listTablesByOutlet, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RestaurantTable{}
	for rows.Next() {
		var i RestaurantTable
		if err := rows.Scan(
			&i.ID,
			&i.OutletID,
			&i.FloorID,
			&i.TableNumber,
			&i.Seats,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
