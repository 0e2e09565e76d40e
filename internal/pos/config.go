package pos

import (
	"slices"

	"github.com/google/uuid"
)

// Config is the per-outlet POS configuration.
type Config struct {
	ModuleRestaurant      bool
	SetTipAfterPayment    bool
	PreparationCategories []string
}

// HasPreparationCategories reports whether any kitchen printing is set up.
func (c Config) HasPreparationCategories() bool {
	return len(c.PreparationCategories) > 0
}

func (c Config) IsPreparationCategory(category string) bool {
	return category != "" && slices.Contains(c.PreparationCategories, category)
}

type Floor struct {
	ID     uuid.UUID
	Name   string
	Tables []Table
}

type Table struct {
	ID          uuid.UUID
	FloorID     uuid.UUID
	FloorName   string
	TableNumber int
	Seats       int
}
