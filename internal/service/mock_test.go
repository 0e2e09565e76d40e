package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/restaurant/internal/database"
	"github.com/kiwari-pos/restaurant/internal/ws"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.commits++
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// memStore is an in-memory OrderStore. It enforces the tracking number
// constraint and the combo_parent_id ON DELETE SET NULL the way the schema
// does. The Fn fields override single queries for failure tests.
type memStore struct {
	mu sync.Mutex

	outlets map[uuid.UUID]database.Outlet
	users   map[uuid.UUID]database.User
	configs map[uuid.UUID]database.PosConfig
	tables  map[uuid.UUID]database.GetTableRow
	orders  map[uuid.UUID]database.Order
	lines   map[uuid.UUID]database.OrderLine
	seq     map[uuid.UUID]int

	lockedOrders []uuid.UUID

	createOrderFn             func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	getNextTrackingNumberFn   func(ctx context.Context, outletID uuid.UUID) (int32, error)
	updateOrderLineQuantityFn func(ctx context.Context, arg database.UpdateOrderLineQuantityParams) (database.OrderLine, error)
}

func newMemStore() *memStore {
	return &memStore{
		outlets: make(map[uuid.UUID]database.Outlet),
		users:   make(map[uuid.UUID]database.User),
		configs: make(map[uuid.UUID]database.PosConfig),
		tables:  make(map[uuid.UUID]database.GetTableRow),
		orders:  make(map[uuid.UUID]database.Order),
		lines:   make(map[uuid.UUID]database.OrderLine),
		seq:     make(map[uuid.UUID]int),
	}
}

func (m *memStore) GetNextTrackingNumber(ctx context.Context, outletID uuid.UUID) (int32, error) {
	if m.getNextTrackingNumberFn != nil {
		return m.getNextTrackingNumberFn(ctx, outletID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	last := int32(100)
	for _, o := range m.orders {
		if o.OutletID == outletID && o.TrackingNumber > last {
			last = o.TrackingNumber
		}
	}
	return last + 1, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, arg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OutletID == arg.OutletID && o.TrackingNumber == arg.TrackingNumber {
			return database.Order{}, trackingConflict()
		}
	}
	now := time.Now()
	o := database.Order{
		ID:                uuid.New(),
		OutletID:          arg.OutletID,
		TrackingNumber:    arg.TrackingNumber,
		FloatingOrderName: arg.FloatingOrderName,
		TableID:           arg.TableID,
		CustomerCount:     arg.CustomerCount,
		Note:              arg.Note,
		SplitFromID:       arg.SplitFromID,
		ScreenName:        arg.ScreenName,
		LastOrderChange:   arg.LastOrderChange,
		CreatedBy:         arg.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.OutletID != arg.OutletID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	m.mu.Lock()
	m.lockedOrders = append(m.lockedOrders, arg.ID)
	m.mu.Unlock()
	return m.GetOrder(ctx, arg)
}

func (m *memStore) updateOrder(id, outletID uuid.UUID, fn func(*database.Order)) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.OutletID != outletID {
		return database.Order{}, pgx.ErrNoRows
	}
	fn(&o)
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return o, nil
}

func (m *memStore) UpdateOrderCustomerCount(ctx context.Context, arg database.UpdateOrderCustomerCountParams) (database.Order, error) {
	return m.updateOrder(arg.ID, arg.OutletID, func(o *database.Order) { o.CustomerCount = arg.CustomerCount })
}

func (m *memStore) UpdateOrderBooked(ctx context.Context, arg database.UpdateOrderBookedParams) (database.Order, error) {
	return m.updateOrder(arg.ID, arg.OutletID, func(o *database.Order) { o.Booked = arg.Booked })
}

func (m *memStore) UpdateOrderScreen(ctx context.Context, arg database.UpdateOrderScreenParams) error {
	_, err := m.updateOrder(arg.ID, arg.OutletID, func(o *database.Order) { o.ScreenName = arg.ScreenName })
	return err
}

func (m *memStore) UpdateOrderLastChange(ctx context.Context, arg database.UpdateOrderLastChangeParams) error {
	_, err := m.updateOrder(arg.ID, arg.OutletID, func(o *database.Order) { o.LastOrderChange = arg.LastOrderChange })
	return err
}

func (m *memStore) ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.OrderLine{}
	for _, l := range m.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out, nil
}

func (m *memStore) CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[arg.OrderID]; !ok {
		return database.OrderLine{}, &pgconn.PgError{Code: "23503", ConstraintName: "order_lines_order_id_fkey"}
	}
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	l := database.OrderLine{
		ID:            id,
		OrderID:       arg.OrderID,
		ProductName:   arg.ProductName,
		Category:      arg.Category,
		Quantity:      arg.Quantity,
		UnitPrice:     arg.UnitPrice,
		TaxPercent:    arg.TaxPercent,
		Groupable:     arg.Groupable,
		ComboParentID: arg.ComboParentID,
		Note:          arg.Note,
		Position:      arg.Position,
		CreatedAt:     time.Now(),
	}
	m.lines[id] = l
	m.seq[id] = len(m.seq)
	return l, nil
}

func (m *memStore) UpdateOrderLineQuantity(ctx context.Context, arg database.UpdateOrderLineQuantityParams) (database.OrderLine, error) {
	if m.updateOrderLineQuantityFn != nil {
		return m.updateOrderLineQuantityFn(ctx, arg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[arg.ID]
	if !ok || l.OrderID != arg.OrderID {
		return database.OrderLine{}, pgx.ErrNoRows
	}
	l.Quantity = arg.Quantity
	m.lines[arg.ID] = l
	return l, nil
}

func (m *memStore) DeleteOrderLine(ctx context.Context, arg database.DeleteOrderLineParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[arg.ID]
	if !ok || l.OrderID != arg.OrderID {
		return pgx.ErrNoRows
	}
	delete(m.lines, arg.ID)
	for id, other := range m.lines {
		if other.ComboParentID.Valid && uuid.UUID(other.ComboParentID.Bytes) == arg.ID {
			other.ComboParentID = pgtype.UUID{}
			m.lines[id] = other
		}
	}
	return nil
}

func (m *memStore) GetPosConfig(ctx context.Context, outletID uuid.UUID) (database.PosConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[outletID]
	if !ok {
		return database.PosConfig{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) GetTable(ctx context.Context, arg database.GetTableParams) (database.GetTableRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[arg.ID]
	if !ok || t.OutletID != arg.OutletID {
		return database.GetTableRow{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) GetOutlet(ctx context.Context, id uuid.UUID) (database.Outlet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outlets[id]
	if !ok {
		return database.Outlet{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// mockBroadcaster records every event.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []ws.Event
}

func (m *mockBroadcaster) BroadcastToOutlet(outletID uuid.UUID, event ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockBroadcaster) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// --- Test helpers ---

func trackingConflict() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "orders_outlet_id_tracking_number_key"}
}

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return numericToDecimal(n).Equal(decimal.RequireFromString(expected))
}

type fixture struct {
	store    *memStore
	tx       *mockTx
	events   *mockBroadcaster
	orders   *OrderService
	splits   *SplitService
	outletID uuid.UUID
	userID   uuid.UUID
}

// newFixture wires both services to one memStore. restaurant turns on
// restaurant mode with GRILL and BEVERAGE as kitchen categories.
func newFixture(t *testing.T, restaurant bool) *fixture {
	t.Helper()
	st := newMemStore()
	outletID := uuid.New()
	userID := uuid.New()
	st.outlets[outletID] = database.Outlet{ID: outletID, Name: "Kiwari Nasi Bakar", IsActive: true}
	st.users[userID] = database.User{ID: userID, OutletID: outletID, FullName: "Sari", Role: "CASHIER", IsActive: true}
	if restaurant {
		st.configs[outletID] = database.PosConfig{
			OutletID:              outletID,
			ModuleRestaurant:      true,
			SetTipAfterPayment:    true,
			PreparationCategories: []string{"GRILL", "BEVERAGE"},
		}
	}

	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return st }
	events := &mockBroadcaster{}

	return &fixture{
		store:    st,
		tx:       tx,
		events:   events,
		orders:   NewOrderService(pool, newStore, events),
		splits:   NewSplitService(pool, newStore, events, 30*time.Minute),
		outletID: outletID,
		userID:   userID,
	}
}

func (f *fixture) addTable(number int) uuid.UUID {
	id := uuid.New()
	f.store.tables[id] = database.GetTableRow{
		ID:          id,
		OutletID:    f.outletID,
		FloorID:     uuid.New(),
		TableNumber: int32(number),
		Seats:       4,
		FloorName:   "Main",
	}
	return id
}

type lineSpec struct {
	name      string
	category  string
	qty       string
	price     string
	groupable bool
	parent    int // 1-based index of the combo parent, 0 for none
}

// addOrder inserts an order and its lines straight into the store and
// returns the order and line IDs in argument order.
func (f *fixture) addOrder(t *testing.T, guests int, tableID *uuid.UUID, specs ...lineSpec) (uuid.UUID, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	next, _ := f.store.GetNextTrackingNumber(ctx, f.outletID)
	o, err := f.store.CreateOrder(ctx, database.CreateOrderParams{
		OutletID:        f.outletID,
		TrackingNumber:  next,
		TableID:         optUUID(tableID),
		CustomerCount:   int32(guests),
		ScreenName:      "ProductScreen",
		LastOrderChange: []byte("{}"),
		CreatedBy:       f.userID,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	ids := make([]uuid.UUID, len(specs))
	for i, s := range specs {
		ids[i] = uuid.New()
		var parent *uuid.UUID
		if s.parent > 0 {
			parent = &ids[s.parent-1]
		}
		if _, err := f.store.CreateOrderLine(ctx, database.CreateOrderLineParams{
			ID:            ids[i],
			OrderID:       o.ID,
			ProductName:   s.name,
			Category:      optText(s.category),
			Quantity:      makeNumeric(s.qty),
			UnitPrice:     makeNumeric(s.price),
			TaxPercent:    makeNumeric("0"),
			Groupable:     s.groupable,
			ComboParentID: optUUID(parent),
			Position:      int32(i),
		}); err != nil {
			t.Fatalf("seed line: %v", err)
		}
	}
	return o.ID, ids
}
