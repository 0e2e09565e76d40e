package database

import (
	"context"

	"github.com/google/uuid"
)

const getPosConfig = `-- name: GetPosConfig :one
SELECT outlet_id, module_restaurant, set_tip_after_payment, preparation_categories, updated_at FROM pos_configs
WHERE outlet_id = $1
`

func (q *Queries) GetPosConfig(ctx context.Context, outletID uuid.UUID) (PosConfig, error) {
	row := q.db.QueryRow(ctx, getPosConfig, outletID)
	var i PosConfig
	err := row.Scan(
		&i.OutletID,
		&i.ModuleRestaurant,
		&i.SetTipAfterPayment,
		&i.PreparationCategories,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertPosConfig = `-- name: UpsertPosConfig :one
INSERT INTO pos_configs (outlet_id, module_restaurant, set_tip_after_payment, preparation_categories)
VALUES ($1, $2, $3, $4)
ON CONFLICT (outlet_id) DO UPDATE
SET module_restaurant = EXCLUDED.module_restaurant,
    set_tip_after_payment = EXCLUDED.set_tip_after_payment,
    preparation_categories = EXCLUDED.preparation_categories,
    updated_at = now()
RETURNING outlet_id, module_restaurant, set_tip_after_payment, preparation_categories, updated_at
`

type UpsertPosConfigParams struct {
	OutletID              uuid.UUID `json:"outlet_id"`
	ModuleRestaurant      bool      `json:"module_restaurant"`
	SetTipAfterPayment    bool      `json:"set_tip_after_payment"`
	PreparationCategories []string  `json:"preparation_categories"`
}

func (q *Queries) UpsertPosConfig(ctx context.Context, arg UpsertPosConfigParams) (PosConfig, error) {
	row := q.db.QueryRow(ctx, upsertPosConfig,
		arg.OutletID,
		arg.ModuleRestaurant,
		arg.SetTipAfterPayment,
		arg.PreparationCategories,
	)
	var i PosConfig
	err := row.Scan(
		&i.OutletID,
		&i.ModuleRestaurant,
		&i.SetTipAfterPayment,
		&i.PreparationCategories,
		&i.UpdatedAt,
	)
	return i, err
}
