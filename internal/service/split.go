package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/database"
	"github.com/kiwari-pos/restaurant/internal/enum"
	"github.com/kiwari-pos/restaurant/internal/metrics"
	"github.com/kiwari-pos/restaurant/internal/pos"
	"github.com/kiwari-pos/restaurant/internal/splitbill"
	"github.com/kiwari-pos/restaurant/internal/ws"
	"github.com/shopspring/decimal"
)

// SplitLine is one order line as the split screen shows it.
type SplitLine struct {
	LineID        uuid.UUID       `json:"line_id"`
	ComboParentID *uuid.UUID      `json:"combo_parent_id,omitempty"`
	Display       pos.DisplayData `json:"display"`
	Selected      decimal.Decimal `json:"selected_qty"`
	SelectedPrice decimal.Decimal `json:"selected_price"`
}

// SplitView is the state of a split-bill screen.
type SplitView struct {
	SessionID     uuid.UUID       `json:"session_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	OrderName     string          `json:"order_name"`
	Disallow      bool            `json:"disallow"`
	Lines         []SplitLine     `json:"lines"`
	NewOrderPrice decimal.Decimal `json:"new_order_price"`
}

// SplitResult is what a committed split leaves behind. The terminal
// switches to ActiveOrderID on Screen.
type SplitResult struct {
	Original      *pos.RestaurantOrder
	New           *pos.RestaurantOrder
	ActiveOrderID uuid.UUID
	Screen        string
}

// OrderSplitEvent is the payload of order.split.
type OrderSplitEvent struct {
	OriginalOrderID uuid.UUID `json:"original_order_id"`
	NewOrderID      uuid.UUID `json:"new_order_id"`
}

type splitEntry struct {
	mu       sync.Mutex
	session  *splitbill.Session
	lastSeen time.Time
}

// SplitService keeps the open split-bill screens and commits them. Sessions
// live in memory; an idle session expires after ttl.
type SplitService struct {
	pool     TxBeginner
	newStore NewOrderStore
	events   Broadcaster
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*splitEntry
}

func NewSplitService(pool TxBeginner, newStore NewOrderStore, events Broadcaster, ttl time.Duration) *SplitService {
	return &SplitService{
		pool:     pool,
		newStore: newStore,
		events:   events,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*splitEntry),
	}
}

// Open starts a split-bill screen on the order and moves the order's
// terminal state to SplitBillScreen.
func (s *SplitService) Open(ctx context.Context, outletID, orderID, userID uuid.UUID, disallow bool) (*SplitView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := loadOrder(ctx, store, outletID, orderID, false)
	if err != nil {
		return nil, err
	}
	if len(order.Lines) == 0 {
		return nil, ErrEmptyLines
	}

	if err := store.UpdateOrderScreen(ctx, database.UpdateOrderScreenParams{
		ID:         orderID,
		OutletID:   outletID,
		ScreenName: enum.ScreenSplitBill,
	}); err != nil {
		return nil, fmt.Errorf("update screen: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	sess := splitbill.NewSession(order.Order, userID, disallow)
	entry := &splitEntry{session: sess, lastSeen: s.now()}

	s.mu.Lock()
	s.sessions[sess.ID] = entry
	s.mu.Unlock()
	metrics.SplitSessionsOpen.Inc()

	slog.Debug("split session opened", "session_id", sess.ID, "order_id", orderID, "disallow", disallow)
	return splitView(sess, order), nil
}

// entry returns the live session, touching its idle timer. Sessions of
// other outlets are reported as missing.
func (s *SplitService) entry(outletID, sessionID uuid.UUID) (*splitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok || e.session.OutletID != outletID {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return e, nil
}

func (s *SplitService) currentOrder(ctx context.Context, sess *splitbill.Session) (*pos.RestaurantOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return loadOrder(ctx, s.newStore(tx), sess.OutletID, sess.OrderID, false)
}

// View returns the screen state against the order as it is stored now.
func (s *SplitService) View(ctx context.Context, outletID, sessionID uuid.UUID) (*SplitView, error) {
	e, err := s.entry(outletID, sessionID)
	if err != nil {
		return nil, err
	}
	order, err := s.currentOrder(ctx, e.session)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return splitView(e.session, order), nil
}

// Toggle applies one tap on a line to the selection.
func (s *SplitService) Toggle(ctx context.Context, outletID, sessionID, lineID uuid.UUID) (*SplitView, error) {
	e, err := s.entry(outletID, sessionID)
	if err != nil {
		return nil, err
	}
	order, err := s.currentOrder(ctx, e.session)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.session.Toggle(order.Order, lineID); err != nil {
		return nil, err
	}
	return splitView(e.session, order), nil
}

// Commit moves the selection into a new order. The session is closed only
// when the split succeeds, so a failed commit can be retried.
func (s *SplitService) Commit(ctx context.Context, outletID, sessionID, userID uuid.UUID) (*SplitResult, error) {
	e, err := s.entry(outletID, sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sess := e.session
	if sess.Disallow {
		return nil, ErrSplitDisallowed
	}

	var (
		result *SplitResult
		moved  int
	)
	for attempt := 0; attempt < maxTrackingNumberRetries; attempt++ {
		result, moved, err = s.commitTx(ctx, sess, userID)
		if err == nil || !isTrackingNumberConflict(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.remove(sessionID)
	metrics.SplitCommits.Inc()
	metrics.SplitLinesMoved.Add(float64(moved))

	publish(s.events, outletID, ws.EventOrderSplit, OrderSplitEvent{
		OriginalOrderID: result.Original.ID,
		NewOrderID:      result.New.ID,
	})
	publish(s.events, outletID, ws.EventOrderUpdated, orderEvent(result.Original))

	slog.Info("order split",
		"original_order_id", result.Original.ID,
		"new_order_id", result.New.ID,
		"new_tracking_number", result.New.TrackingNumber,
		"lines_moved", moved,
	)
	return result, nil
}

func (s *SplitService) commitTx(ctx context.Context, sess *splitbill.Session, userID uuid.UUID) (*SplitResult, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	original, err := loadOrder(ctx, store, sess.OutletID, sess.OrderID, true)
	if err != nil {
		return nil, 0, err
	}

	plan, err := sess.Plan(original.Order)
	if err != nil {
		if errors.Is(err, splitbill.ErrNothingSelected) && sess.HasSelection() {
			return nil, 0, ErrOrderSplitAway
		}
		return nil, 0, err
	}

	// The new order is unseated and named after the one it came from.
	created := pos.NewRestaurantOrder(&pos.Order{
		OutletID:    original.OutletID,
		SplitFromID: &original.ID,
		UIState:     pos.UIState{Screen: enum.ScreenProduct},
		CreatedBy:   userID,
	}, original.Config)

	next, err := store.GetNextTrackingNumber(ctx, original.OutletID)
	if err != nil {
		return nil, 0, fmt.Errorf("get next tracking number: %w", err)
	}
	created.Note = splitbill.SplitNote(int(next), original.OrderName())

	lastChange, err := encodeLastOrderChange(nil)
	if err != nil {
		return nil, 0, err
	}
	row, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OutletID:        created.OutletID,
		TrackingNumber:  next,
		CustomerCount:   int32(created.Guests),
		Note:            optText(created.Note),
		SplitFromID:     optUUID(created.SplitFromID),
		ScreenName:      created.UIState.Screen,
		LastOrderChange: lastChange,
		CreatedBy:       userID,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("create order: %w", err)
	}
	applyOrderRow(created.Order, row)

	newLines := make([]*pos.Line, len(plan.NewLines))
	for i := range plan.NewLines {
		newLines[i] = &plan.NewLines[i]
	}
	if err := insertLines(ctx, store, created.Order, newLines); err != nil {
		return nil, 0, err
	}

	for _, u := range plan.Updates {
		if _, err := store.UpdateOrderLineQuantity(ctx, database.UpdateOrderLineQuantityParams{
			ID:       u.LineID,
			OrderID:  original.ID,
			Quantity: quantityToNumeric(u.Quantity),
		}); err != nil {
			return nil, 0, fmt.Errorf("reduce line %s: %w", u.LineID, err)
		}
	}
	for _, id := range plan.Deletes {
		if err := store.DeleteOrderLine(ctx, database.DeleteOrderLineParams{ID: id, OrderID: original.ID}); err != nil {
			return nil, 0, fmt.Errorf("delete line %s: %w", id, err)
		}
	}
	plan.ApplyToOriginal(original.Order)

	// Both orders' lines already reached the kitchen under the original;
	// marking them sent keeps the split from printing a second ticket.
	if original.Config.HasPreparationCategories() {
		for _, o := range []*pos.Order{original.Order, created.Order} {
			o.UpdateLastOrderChange()
			if err := saveLastOrderChange(ctx, store, o); err != nil {
				return nil, 0, fmt.Errorf("save last order change: %w", err)
			}
		}
		metrics.KitchenTicketsSuppressed.Add(2)
	}

	original.SetCustomerCount(original.CustomerCount() - 1)
	if _, err := store.UpdateOrderCustomerCount(ctx, database.UpdateOrderCustomerCountParams{
		ID:            original.ID,
		OutletID:      original.OutletID,
		CustomerCount: int32(original.CustomerCount()),
	}); err != nil {
		return nil, 0, fmt.Errorf("update customer count: %w", err)
	}

	original.UIState.Screen = enum.ScreenProduct
	if err := store.UpdateOrderScreen(ctx, database.UpdateOrderScreenParams{
		ID:         original.ID,
		OutletID:   original.OutletID,
		ScreenName: enum.ScreenProduct,
	}); err != nil {
		return nil, 0, fmt.Errorf("update screen: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit tx: %w", err)
	}

	return &SplitResult{
		Original:      original,
		New:           created,
		ActiveOrderID: created.ID,
		Screen:        enum.ScreenProduct,
	}, len(newLines), nil
}

// Close leaves the split screen without committing. The order returns to
// ProductScreen.
func (s *SplitService) Close(ctx context.Context, outletID, sessionID uuid.UUID) error {
	e, err := s.entry(outletID, sessionID)
	if err != nil {
		return err
	}
	s.remove(sessionID)
	return s.resetScreen(ctx, e.session)
}

func (s *SplitService) remove(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		metrics.SplitSessionsOpen.Dec()
	}
}

func (s *SplitService) resetScreen(ctx context.Context, sess *splitbill.Session) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.newStore(tx).UpdateOrderScreen(ctx, database.UpdateOrderScreenParams{
		ID:         sess.OrderID,
		OutletID:   sess.OutletID,
		ScreenName: enum.ScreenProduct,
	}); err != nil {
		return fmt.Errorf("update screen: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// OpenSessions reports how many split screens are open.
func (s *SplitService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run expires idle sessions until ctx is done. Call it in its own goroutine.
func (s *SplitService) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep drops sessions idle for longer than ttl and resets their orders.
func (s *SplitService) sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.ttl)

	var expired []*splitbill.Session
	s.mu.Lock()
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.session)
			delete(s.sessions, id)
			metrics.SplitSessionsOpen.Dec()
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		slog.Info("split session expired", "session_id", sess.ID, "order_id", sess.OrderID)
		if err := s.resetScreen(ctx, sess); err != nil {
			slog.Warn("reset screen after expiry", "order_id", sess.OrderID, "error", err)
		}
	}
	return len(expired)
}

func splitView(sess *splitbill.Session, order *pos.RestaurantOrder) *SplitView {
	view := &SplitView{
		SessionID:     sess.ID,
		OrderID:       order.ID,
		OrderName:     order.OrderName(),
		Disallow:      sess.Disallow,
		Lines:         make([]SplitLine, len(order.Lines)),
		NewOrderPrice: sess.NewOrderPrice(),
	}
	for i, l := range order.Lines {
		view.Lines[i] = SplitLine{
			LineID:        l.ID,
			ComboParentID: l.ComboParentID,
			Display:       sess.LineData(l),
			Selected:      sess.Selected(l.ID),
			SelectedPrice: sess.SelectedPrice(l.ID),
		}
	}
	return view
}
