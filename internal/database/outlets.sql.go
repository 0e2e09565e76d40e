package database

import (
	"context"

	"github.com/google/uuid"
)

const getOutlet = `-- name: GetOutlet :one
SELECT id, name, address, phone, is_active, created_at FROM outlets
WHERE id = $1
`

func (q *Queries) GetOutlet(ctx context.Context, id uuid.UUID) (Outlet, error) {
	row := q.db.QueryRow(ctx, getOutlet, id)
	var i Outlet
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}
