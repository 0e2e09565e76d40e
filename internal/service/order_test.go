package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/database"
	"github.com/kiwari-pos/restaurant/internal/ws"
)

func basicReq(outletID, userID uuid.UUID) CreateOrderRequest {
	return CreateOrderRequest{
		OutletID:  outletID,
		CreatedBy: userID,
		Lines: []CreateLineRequest{
			{ProductName: "Nasi Bakar Ayam", Category: "GRILL", Quantity: "2", UnitPrice: "25000", Groupable: true},
		},
	}
}

// =====================
// Validation
// =====================

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateOrderRequest)
		wantErr error
	}{
		{"empty lines", func(r *CreateOrderRequest) { r.Lines = nil }, ErrEmptyLines},
		{"zero quantity", func(r *CreateOrderRequest) { r.Lines[0].Quantity = "0" }, ErrInvalidQuantity},
		{"quantity below storage precision", func(r *CreateOrderRequest) { r.Lines[0].Quantity = "0.0004" }, ErrInvalidQuantity},
		{"bad quantity", func(r *CreateOrderRequest) { r.Lines[0].Quantity = "two" }, ErrInvalidQuantity},
		{"negative price", func(r *CreateOrderRequest) { r.Lines[0].UnitPrice = "-1" }, ErrInvalidPrice},
		{"negative tax", func(r *CreateOrderRequest) { r.Lines[0].TaxPercent = "-10" }, ErrInvalidTax},
		{"missing name", func(r *CreateOrderRequest) { r.Lines[0].ProductName = "" }, ErrProductName},
		{"negative guests", func(r *CreateOrderRequest) { r.CustomerCount = -1 }, ErrInvalidGuestCount},
		{"bad table id", func(r *CreateOrderRequest) { r.TableID = "table-7" }, ErrTableNotFound},
		{"unknown table", func(r *CreateOrderRequest) { r.TableID = uuid.NewString() }, ErrTableNotFound},
		{"nested combo", func(r *CreateOrderRequest) {
			r.Lines[0].Combo = []CreateLineRequest{{
				ProductName: "Nasi", Quantity: "1", UnitPrice: "0",
				Combo: []CreateLineRequest{{ProductName: "Sambal", Quantity: "1", UnitPrice: "0"}},
			}}
		}, ErrNestedCombo},
		{"bad combo part", func(r *CreateOrderRequest) {
			r.Lines[0].Combo = []CreateLineRequest{{ProductName: "Nasi", Quantity: "0", UnitPrice: "0"}}
		}, ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			req := basicReq(f.outletID, f.userID)
			tt.mutate(&req)

			_, err := f.orders.CreateOrder(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(f.store.orders) != 0 {
				t.Errorf("no order should be stored, got %d", len(f.store.orders))
			}
		})
	}
}

// =====================
// Creation
// =====================

func TestCreateOrder_RoundsToStoredPrecision(t *testing.T) {
	f := newFixture(t, true)
	req := basicReq(f.outletID, f.userID)
	req.Lines[0].Quantity = "1.0006"
	req.Lines[0].UnitPrice = "10.005"
	req.Lines[0].TaxPercent = "11.125"

	order, err := f.orders.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	line := order.Lines[0]
	if line.Quantity.String() != "1.001" || line.UnitPrice.String() != "10.01" || line.TaxPercent.String() != "11.13" {
		t.Errorf("returned line: qty %s price %s tax %s", line.Quantity, line.UnitPrice, line.TaxPercent)
	}

	stored, err := f.store.ListOrderLinesByOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !numericEquals(stored[0].Quantity, "1.001") || !numericEquals(stored[0].UnitPrice, "10.01") || !numericEquals(stored[0].TaxPercent, "11.13") {
		t.Errorf("stored line: qty %v price %v tax %v", stored[0].Quantity, stored[0].UnitPrice, stored[0].TaxPercent)
	}
}

func TestCreateOrder_RestaurantDefaults(t *testing.T) {
	f := newFixture(t, true)
	tableID := f.addTable(12)

	req := basicReq(f.outletID, f.userID)
	req.TableID = tableID.String()
	req.Lines = append(req.Lines, CreateLineRequest{
		ProductName: "Paket Hemat", Quantity: "1", UnitPrice: "30000", TaxPercent: "10",
		Combo: []CreateLineRequest{
			{ProductName: "Nasi", Category: "GRILL", Quantity: "1", UnitPrice: "0"},
			{ProductName: "Es Teh", Category: "BEVERAGE", Quantity: "1", UnitPrice: "0"},
		},
	})

	order, err := f.orders.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.TrackingNumber != 101 {
		t.Errorf("tracking number: got %d, want 101", order.TrackingNumber)
	}
	if order.CustomerCount() != 1 {
		t.Errorf("restaurant mode should default guests to 1, got %d", order.CustomerCount())
	}
	if order.OrderName() != "12" {
		t.Errorf("order name: got %q, want table number 12", order.OrderName())
	}
	if len(order.Lines) != 4 {
		t.Fatalf("lines: got %d, want 4", len(order.Lines))
	}
	parent := order.Lines[1]
	for _, child := range order.Lines[2:] {
		if child.ComboParentID == nil || *child.ComboParentID != parent.ID {
			t.Errorf("%s should point at the combo parent", child.ProductName)
		}
	}

	stored, err := f.store.ListOrderLinesByOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 4 {
		t.Fatalf("stored lines: got %d, want 4", len(stored))
	}
	if !numericEquals(stored[0].Quantity, "2") || !numericEquals(stored[1].TaxPercent, "10") {
		t.Errorf("stored numerics wrong: qty %v tax %v", stored[0].Quantity, stored[1].TaxPercent)
	}
	if row := f.store.orders[order.ID]; row.CustomerCount != 1 || row.ScreenName != "ProductScreen" {
		t.Errorf("stored order: guests %d screen %q", row.CustomerCount, row.ScreenName)
	}

	if got := f.events.types(); len(got) != 1 || got[0] != ws.EventOrderUpdated {
		t.Errorf("events: got %v, want [order.updated]", got)
	}
}

func TestCreateOrder_NoRestaurantKeepsZeroGuests(t *testing.T) {
	f := newFixture(t, false)

	order, err := f.orders.CreateOrder(context.Background(), basicReq(f.outletID, f.userID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.CustomerCount() != 0 {
		t.Errorf("guests: got %d, want 0 outside restaurant mode", order.CustomerCount())
	}
	if order.Table() != nil {
		t.Error("Table must be nil outside restaurant mode")
	}
}

// =====================
// Retry on unique constraint violation
// =====================

func TestCreateOrder_RetryOnTrackingConflict(t *testing.T) {
	f := newFixture(t, true)

	createCalls := 0
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		createCalls++
		if createCalls == 1 {
			return database.Order{}, trackingConflict()
		}
		return database.Order{ID: uuid.New(), OutletID: arg.OutletID, TrackingNumber: arg.TrackingNumber}, nil
	}

	numberCalls := 0
	f.store.getNextTrackingNumberFn = func(ctx context.Context, oid uuid.UUID) (int32, error) {
		numberCalls++
		return int32(100 + numberCalls), nil
	}

	order, err := f.orders.CreateOrder(context.Background(), basicReq(f.outletID, f.userID))
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if createCalls != 2 || numberCalls != 2 {
		t.Errorf("expected 2 attempts, got create=%d number=%d", createCalls, numberCalls)
	}
	if order.TrackingNumber != 102 {
		t.Errorf("tracking number: got %d, want 102", order.TrackingNumber)
	}
}

func TestCreateOrder_RetryExhausted(t *testing.T) {
	f := newFixture(t, true)
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, trackingConflict()
	}

	_, err := f.orders.CreateOrder(context.Background(), basicReq(f.outletID, f.userID))
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	if !strings.Contains(err.Error(), "create order") {
		t.Errorf("expected 'create order' in error message, got: %v", err)
	}
}

func TestCreateOrder_NonUniqueErrorNotRetried(t *testing.T) {
	f := newFixture(t, true)
	calls := 0
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		calls++
		return database.Order{}, errors.New("some other DB error")
	}

	if _, err := f.orders.CreateOrder(context.Background(), basicReq(f.outletID, f.userID)); err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("non-unique errors should not retry: expected 1 call, got %d", calls)
	}
}

// =====================
// Reads and updates
// =====================

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.orders.GetOrder(context.Background(), f.outletID, uuid.New()); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestGetOrder_OtherOutlet(t *testing.T) {
	f := newFixture(t, true)
	orderID, _ := f.addOrder(t, 2, nil, lineSpec{name: "Es Teh", qty: "1", price: "5000"})

	if _, err := f.orders.GetOrder(context.Background(), uuid.New(), orderID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for another outlet, got %v", err)
	}
}

func TestGetOrder_KeepsStoredZeroGuests(t *testing.T) {
	f := newFixture(t, true)
	orderID, _ := f.addOrder(t, 0, nil, lineSpec{name: "Es Teh", qty: "1", price: "5000"})

	order, err := f.orders.GetOrder(context.Background(), f.outletID, orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if order.CustomerCount() != 0 {
		t.Errorf("a stored count of 0 must not be reset, got %d", order.CustomerCount())
	}
}

func TestSetCustomerCount(t *testing.T) {
	tests := []struct {
		in   int
		want int32
	}{
		{4, 4},
		{0, 0},
		{-3, 0},
	}
	for _, tt := range tests {
		f := newFixture(t, true)
		orderID, _ := f.addOrder(t, 2, nil, lineSpec{name: "Es Teh", qty: "1", price: "5000"})

		order, err := f.orders.SetCustomerCount(context.Background(), f.outletID, orderID, tt.in)
		if err != nil {
			t.Fatalf("set %d: %v", tt.in, err)
		}
		if int32(order.CustomerCount()) != tt.want {
			t.Errorf("set %d: got %d, want %d", tt.in, order.CustomerCount(), tt.want)
		}
		if got := f.store.orders[orderID].CustomerCount; got != tt.want {
			t.Errorf("set %d: stored %d, want %d", tt.in, got, tt.want)
		}
		if len(f.store.lockedOrders) != 1 {
			t.Errorf("update should lock the order row")
		}
	}
}

func TestSetBooked(t *testing.T) {
	f := newFixture(t, true)
	orderID, _ := f.addOrder(t, 2, nil, lineSpec{name: "Es Teh", qty: "1", price: "5000"})

	order, err := f.orders.SetBooked(context.Background(), f.outletID, orderID, true)
	if err != nil {
		t.Fatalf("set booked: %v", err)
	}
	if !order.UIState.Booked || !f.store.orders[orderID].Booked {
		t.Error("booked flag not stored")
	}

	var payload OrderUpdatedEvent
	if err := json.Unmarshal(f.events.events[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if !payload.Booked || payload.OrderID != orderID {
		t.Errorf("event payload: %+v", payload)
	}
}

func TestSetBooked_CommitFailure(t *testing.T) {
	f := newFixture(t, true)
	orderID, _ := f.addOrder(t, 2, nil, lineSpec{name: "Es Teh", qty: "1", price: "5000"})
	f.tx.commitErr = errors.New("connection reset")

	if _, err := f.orders.SetBooked(context.Background(), f.outletID, orderID, true); err == nil {
		t.Fatal("expected commit error")
	}
	if len(f.events.events) != 0 {
		t.Error("no event should go out when the commit fails")
	}
}

func TestReceipt(t *testing.T) {
	f := newFixture(t, true)
	tableID := f.addTable(7)
	orderID, _ := f.addOrder(t, 2, &tableID,
		lineSpec{name: "Nasi Bakar", category: "GRILL", qty: "2", price: "25000"},
		lineSpec{name: "Es Teh", category: "BEVERAGE", qty: "1", price: "5000"},
	)

	receipt, err := f.orders.Receipt(context.Background(), f.outletID, orderID, f.userID)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if receipt.Header.OutletName != "Kiwari Nasi Bakar" || receipt.Header.Cashier != "Sari" {
		t.Errorf("header: %+v", receipt.Header)
	}
	if receipt.Name != "7" {
		t.Errorf("name: got %q, want 7", receipt.Name)
	}
	if !receipt.IsRestaurant || !receipt.SetTipAfterPayment {
		t.Errorf("restaurant flags missing: %+v", receipt)
	}
	if receipt.Total != "55000.00" {
		t.Errorf("total: got %s, want 55000.00", receipt.Total)
	}
	if len(receipt.Lines) != 2 {
		t.Errorf("lines: got %d, want 2", len(receipt.Lines))
	}
}

func TestReceipt_UnknownCashier(t *testing.T) {
	f := newFixture(t, false)
	orderID, _ := f.addOrder(t, 1, nil, lineSpec{name: "Es Teh", qty: "1", price: "5000"})

	receipt, err := f.orders.Receipt(context.Background(), f.outletID, orderID, uuid.New())
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if receipt.Header.Cashier != "" {
		t.Errorf("cashier: got %q, want empty", receipt.Header.Cashier)
	}
	if receipt.IsRestaurant {
		t.Error("IsRestaurant should be false without restaurant mode")
	}
}

func TestSendToKitchen(t *testing.T) {
	f := newFixture(t, true)
	orderID, _ := f.addOrder(t, 2, nil,
		lineSpec{name: "Nasi Bakar", category: "GRILL", qty: "2", price: "25000"},
		lineSpec{name: "Kerupuk", category: "SNACK", qty: "1", price: "2000"},
	)
	ctx := context.Background()

	ticket, err := f.orders.SendToKitchen(ctx, f.outletID, orderID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ticket.Added) != 1 || ticket.Added[0].ProductName != "Nasi Bakar" {
		t.Fatalf("added: got %+v, want only the GRILL line", ticket.Added)
	}
	if string(f.store.orders[orderID].LastOrderChange) == "{}" {
		t.Error("last order change not stored")
	}

	again, err := f.orders.SendToKitchen(ctx, f.outletID, orderID)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if !again.Empty() {
		t.Errorf("nothing changed, ticket should be empty: %+v", again)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != ws.EventOrderKitchen {
		t.Errorf("events: got %v, want one order.kitchen", got)
	}
}
