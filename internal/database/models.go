package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Outlet struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Address   pgtype.Text `json:"address"`
	Phone     pgtype.Text `json:"phone"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	OutletID       uuid.UUID `json:"outlet_id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

type PosConfig struct {
	OutletID              uuid.UUID `json:"outlet_id"`
	ModuleRestaurant      bool      `json:"module_restaurant"`
	SetTipAfterPayment    bool      `json:"set_tip_after_payment"`
	PreparationCategories []string  `json:"preparation_categories"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type Floor struct {
	ID        uuid.UUID `json:"id"`
	OutletID  uuid.UUID `json:"outlet_id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
}

type RestaurantTable struct {
	ID          uuid.UUID `json:"id"`
	OutletID    uuid.UUID `json:"outlet_id"`
	FloorID     uuid.UUID `json:"floor_id"`
	TableNumber int32     `json:"table_number"`
	Seats       int32     `json:"seats"`
}

type Order struct {
	ID                uuid.UUID   `json:"id"`
	OutletID          uuid.UUID   `json:"outlet_id"`
	TrackingNumber    int32       `json:"tracking_number"`
	FloatingOrderName pgtype.Text `json:"floating_order_name"`
	TableID           pgtype.UUID `json:"table_id"`
	CustomerCount     int32       `json:"customer_count"`
	Note              pgtype.Text `json:"note"`
	SplitFromID       pgtype.UUID `json:"split_from_id"`
	ScreenName        string      `json:"screen_name"`
	Booked            bool        `json:"booked"`
	LastOrderChange   []byte      `json:"last_order_change"`
	CreatedBy         uuid.UUID   `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

type OrderLine struct {
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
	CreatedAt     time.Time      `json:"created_at"`
}
