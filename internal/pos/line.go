package pos

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is a single order line. Quantity may be fractional for weighed
// products; groupable lines are sold in identical units.
type Line struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	ProductName   string
	Category      string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	TaxPercent    decimal.Decimal
	Groupable     bool
	ComboParentID *uuid.UUID
	Note          string
}

// DisplayData is what a terminal renders for one line.
type DisplayData struct {
	ProductName string `json:"product_name"`
	Quantity    string `json:"qty"`
	UnitPrice   string `json:"unit_price"`
	Price       string `json:"price"`
	Note        string `json:"note,omitempty"`
	IsComboPart bool   `json:"is_combo_part"`
}

// PriceWithTax returns the line total including tax, rounded to cents.
func (l *Line) PriceWithTax() decimal.Decimal {
	gross := l.UnitPrice.Mul(l.Quantity)
	tax := gross.Mul(l.TaxPercent).Div(hundred)
	return gross.Add(tax).Round(2)
}

// PriceFor returns the share of PriceWithTax that qty units represent.
func (l *Line) PriceFor(qty decimal.Decimal) decimal.Decimal {
	if l.Quantity.IsZero() {
		return decimal.Zero
	}
	return l.PriceWithTax().Div(l.Quantity).Mul(qty)
}

// QuantityString formats the quantity without trailing zeros.
func (l *Line) QuantityString() string {
	return l.Quantity.String()
}

func (l *Line) DisplayData() DisplayData {
	return DisplayData{
		ProductName: l.ProductName,
		Quantity:    l.QuantityString(),
		UnitPrice:   l.UnitPrice.StringFixed(2),
		Price:       l.PriceWithTax().StringFixed(2),
		Note:        l.Note,
		IsComboPart: l.ComboParentID != nil,
	}
}

// Snapshot captures the kitchen-relevant state of the line.
func (l *Line) Snapshot() LineSnapshot {
	return LineSnapshot{
		ProductName: l.ProductName,
		Category:    l.Category,
		Quantity:    l.Quantity,
		Note:        l.Note,
	}
}
