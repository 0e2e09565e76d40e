package pos

import "github.com/google/uuid"

type ReceiptHeader struct {
	OutletName string `json:"outlet_name"`
	BaseURL    string `json:"base_url,omitempty"`
	Cashier    string `json:"cashier,omitempty"`
}

type ReceiptLine struct {
	ProductName string `json:"product_name"`
	Quantity    string `json:"qty"`
	UnitPrice   string `json:"unit_price"`
	Price       string `json:"price"`
	Note        string `json:"note,omitempty"`
}

// Receipt is the payload handed to a receipt printer.
type Receipt struct {
	Header             ReceiptHeader `json:"header"`
	OrderID            uuid.UUID     `json:"order_id"`
	Name               string        `json:"name"`
	TrackingNumber     int           `json:"tracking_number"`
	Note               string        `json:"note,omitempty"`
	Lines              []ReceiptLine `json:"orderlines"`
	Total              string        `json:"amount_total"`
	SetTipAfterPayment bool          `json:"set_tip_after_payment"`
	IsRestaurant       bool          `json:"is_restaurant"`
}

func (o *Order) ExportForPrinting(header ReceiptHeader) Receipt {
	lines := make([]ReceiptLine, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = ReceiptLine{
			ProductName: l.ProductName,
			Quantity:    l.QuantityString(),
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Price:       l.PriceWithTax().StringFixed(2),
			Note:        l.Note,
		}
	}
	return Receipt{
		Header:         header,
		OrderID:        o.ID,
		Name:           o.FloatingName(),
		TrackingNumber: o.TrackingNumber,
		Note:           o.Note,
		Lines:          lines,
		Total:          o.TotalWithTax().StringFixed(2),
	}
}
