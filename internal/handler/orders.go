package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/middleware"
	"github.com/kiwari-pos/restaurant/internal/pos"
	"github.com/kiwari-pos/restaurant/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*pos.RestaurantOrder, error)
	GetOrder(ctx context.Context, outletID, orderID uuid.UUID) (*pos.RestaurantOrder, error)
	SetCustomerCount(ctx context.Context, outletID, orderID uuid.UUID, count int) (*pos.RestaurantOrder, error)
	SetBooked(ctx context.Context, outletID, orderID uuid.UUID, booked bool) (*pos.RestaurantOrder, error)
	Receipt(ctx context.Context, outletID, orderID, cashierID uuid.UUID) (*pos.Receipt, error)
	SendToKitchen(ctx context.Context, outletID, orderID uuid.UUID) (pos.KitchenTicket, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/customer-count", h.SetCustomerCount)
	r.Patch("/{id}/booked", h.SetBooked)
	r.Get("/{id}/receipt", h.Receipt)
	r.Post("/{id}/kitchen", h.SendToKitchen)
}

// --- Request / Response types ---

type createOrderRequest struct {
	FloatingOrderName string                   `json:"floating_order_name"`
	TableID           string                   `json:"table_id"`
	CustomerCount     int                      `json:"customer_count"`
	Note              string                   `json:"note"`
	Lines             []createOrderLineRequest `json:"lines"`
}

type createOrderLineRequest struct {
	ProductName string                   `json:"product_name"`
	Category    string                   `json:"category"`
	Quantity    string                   `json:"qty"`
	UnitPrice   string                   `json:"unit_price"`
	TaxPercent  string                   `json:"tax_percent"`
	Groupable   bool                     `json:"groupable"`
	Note        string                   `json:"note"`
	Combo       []createOrderLineRequest `json:"combo"`
}

type customerCountRequest struct {
	CustomerCount *int `json:"customer_count"`
}

type bookedRequest struct {
	Booked *bool `json:"booked"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	OutletID          uuid.UUID           `json:"outlet_id"`
	TrackingNumber    int                 `json:"tracking_number"`
	Name              string              `json:"name"`
	FloatingOrderName *string             `json:"floating_order_name"`
	TableID           *uuid.UUID          `json:"table_id"`
	TableNumber       *int                `json:"table_number"`
	CustomerCount     int                 `json:"customer_count"`
	AmountPerGuest    string              `json:"amount_per_guest"`
	Note              *string             `json:"note"`
	SplitFromID       *uuid.UUID          `json:"split_from_id"`
	Screen            string              `json:"screen"`
	Booked            bool                `json:"booked"`
	Total             string              `json:"amount_total"`
	CreatedBy         uuid.UUID           `json:"created_by"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Lines             []orderLineResponse `json:"lines"`
}

type orderLineResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProductName   string     `json:"product_name"`
	Category      *string    `json:"category"`
	Quantity      string     `json:"qty"`
	UnitPrice     string     `json:"unit_price"`
	TaxPercent    string     `json:"tax_percent"`
	Price         string     `json:"price"`
	Groupable     bool       `json:"groupable"`
	ComboParentID *uuid.UUID `json:"combo_parent_id"`
	Note          *string    `json:"note"`
}

// --- Handlers ---

// Create handles POST /outlets/{oid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	outletID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid outlet ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Lines) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lines are required"})
		return
	}

	for i, l := range req.Lines {
		if l.ProductName == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatLineError(i, "product_name is required"),
			})
			return
		}
		if l.Quantity == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatLineError(i, "qty is required"),
			})
			return
		}
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		OutletID:          outletID,
		CreatedBy:         claims.UserID,
		FloatingOrderName: req.FloatingOrderName,
		TableID:           req.TableID,
		CustomerCount:     req.CustomerCount,
		Note:              req.Note,
		Lines:             toServiceLines(req.Lines),
	})
	if err != nil {
		writeOrderError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Get handles GET /outlets/{oid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	outletID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(r.Context(), outletID, orderID)
	if err != nil {
		writeOrderError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SetCustomerCount handles PATCH /outlets/{oid}/orders/{id}/customer-count.
// Negative counts are stored as zero.
func (h *OrderHandler) SetCustomerCount(w http.ResponseWriter, r *http.Request) {
	outletID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req customerCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CustomerCount == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_count is required"})
		return
	}

	order, err := h.svc.SetCustomerCount(r.Context(), outletID, orderID, *req.CustomerCount)
	if err != nil {
		writeOrderError(w, "set customer count", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SetBooked handles PATCH /outlets/{oid}/orders/{id}/booked.
func (h *OrderHandler) SetBooked(w http.ResponseWriter, r *http.Request) {
	outletID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req bookedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Booked == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "booked is required"})
		return
	}

	order, err := h.svc.SetBooked(r.Context(), outletID, orderID, *req.Booked)
	if err != nil {
		writeOrderError(w, "set booked", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Receipt handles GET /outlets/{oid}/orders/{id}/receipt.
func (h *OrderHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	outletID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	receipt, err := h.svc.Receipt(r.Context(), outletID, orderID, claims.UserID)
	if err != nil {
		writeOrderError(w, "export receipt", err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// SendToKitchen handles POST /outlets/{oid}/orders/{id}/kitchen. The
// response is the ticket that was sent; an empty ticket means nothing
// changed since the last send.
func (h *OrderHandler) SendToKitchen(w http.ResponseWriter, r *http.Request) {
	outletID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	ticket, err := h.svc.SendToKitchen(r.Context(), outletID, orderID)
	if err != nil {
		writeOrderError(w, "send to kitchen", err)
		return
	}

	if ticket.Added == nil {
		ticket.Added = []pos.KitchenChange{}
	}
	if ticket.Removed == nil {
		ticket.Removed = []pos.KitchenChange{}
	}
	writeJSON(w, http.StatusOK, ticket)
}

// --- Helpers ---

// parseOrderPath reads {oid} and {id}, writing a 400 when either is invalid.
func parseOrderPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	outletID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid outlet ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return outletID, orderID, true
}

func toServiceLines(reqs []createOrderLineRequest) []service.CreateLineRequest {
	if len(reqs) == 0 {
		return nil
	}
	lines := make([]service.CreateLineRequest, len(reqs))
	for i, l := range reqs {
		lines[i] = service.CreateLineRequest{
			ProductName: l.ProductName,
			Category:    l.Category,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxPercent:  l.TaxPercent,
			Groupable:   l.Groupable,
			Note:        l.Note,
			Combo:       toServiceLines(l.Combo),
		}
	}
	return lines
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyLines) ||
		errors.Is(err, service.ErrProductName) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrInvalidTax) ||
		errors.Is(err, service.ErrNestedCombo) ||
		errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrInvalidGuestCount)
}

// writeOrderError maps known service errors to HTTP status codes and logs
// the rest.
func writeOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	default:
		slog.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toOrderResponse(o *pos.RestaurantOrder) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OutletID:       o.OutletID,
		TrackingNumber: o.TrackingNumber,
		Name:           o.OrderName(),
		TableID:        o.TableID,
		CustomerCount:  o.CustomerCount(),
		AmountPerGuest: o.AmountPerGuest().StringFixed(2),
		SplitFromID:    o.SplitFromID,
		Screen:         o.UIState.Screen,
		Booked:         o.UIState.Booked,
		Total:          o.TotalWithTax().StringFixed(2),
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Lines:          make([]orderLineResponse, len(o.Lines)),
	}

	if o.FloatingOrderName != "" {
		resp.FloatingOrderName = &o.FloatingOrderName
	}
	if t := o.Table(); t != nil {
		n := t.TableNumber
		resp.TableNumber = &n
	}
	if o.Note != "" {
		resp.Note = &o.Note
	}

	for i, l := range o.Lines {
		resp.Lines[i] = toOrderLineResponse(l)
	}
	return resp
}

func toOrderLineResponse(l *pos.Line) orderLineResponse {
	resp := orderLineResponse{
		ID:            l.ID,
		ProductName:   l.ProductName,
		Quantity:      l.QuantityString(),
		UnitPrice:     l.UnitPrice.StringFixed(2),
		TaxPercent:    l.TaxPercent.StringFixed(2),
		Price:         l.PriceWithTax().StringFixed(2),
		Groupable:     l.Groupable,
		ComboParentID: l.ComboParentID,
	}
	if l.Category != "" {
		resp.Category = &l.Category
	}
	if l.Note != "" {
		resp.Note = &l.Note
	}
	return resp
}

func formatLineError(index int, msg string) string {
	return fmt.Sprintf("lines[%d]: %s", index, msg)
}
