package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/middleware"
	"github.com/kiwari-pos/restaurant/internal/service"
)

// SplitServicer defines the service methods needed by split-bill handlers.
// Satisfied by *service.SplitService; narrow interface for testability.
type SplitServicer interface {
	Open(ctx context.Context, outletID, orderID, userID uuid.UUID, disallow bool) (*service.SplitView, error)
	View(ctx context.Context, outletID, sessionID uuid.UUID) (*service.SplitView, error)
	Toggle(ctx context.Context, outletID, sessionID, lineID uuid.UUID) (*service.SplitView, error)
	Commit(ctx context.Context, outletID, sessionID, userID uuid.UUID) (*service.SplitResult, error)
	Close(ctx context.Context, outletID, sessionID uuid.UUID) error
}

// SplitHandler handles the split-bill screen.
type SplitHandler struct {
	svc SplitServicer
}

func NewSplitHandler(svc SplitServicer) *SplitHandler {
	return &SplitHandler{svc: svc}
}

// RegisterOrderRoutes registers the entry point of the split screen.
// Expected to be mounted inside the order subrouter: /outlets/{oid}/orders
func (h *SplitHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/split", h.Open)
}

// RegisterRoutes registers session endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/split-sessions
func (h *SplitHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{sid}", h.View)
	r.Post("/{sid}/toggle", h.Toggle)
	r.Post("/{sid}/commit", h.Commit)
	r.Delete("/{sid}", h.Close)
}

type openSplitRequest struct {
	Disallow bool `json:"disallow"`
}

type toggleRequest struct {
	LineID string `json:"line_id"`
}

type splitResultResponse struct {
	Original      orderResponse `json:"original"`
	New           orderResponse `json:"new"`
	ActiveOrderID uuid.UUID     `json:"active_order_id"`
	Screen        string        `json:"screen"`
}

// Open handles POST /outlets/{oid}/orders/{id}/split.
func (h *SplitHandler) Open(w http.ResponseWriter, r *http.Request) {
	outletID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	// The body is optional.
	var req openSplitRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	view, err := h.svc.Open(r.Context(), outletID, orderID, claims.UserID, req.Disallow)
	if err != nil {
		writeSplitError(w, "open split", err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// View handles GET /outlets/{oid}/split-sessions/{sid}.
func (h *SplitHandler) View(w http.ResponseWriter, r *http.Request) {
	outletID, sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}

	view, err := h.svc.View(r.Context(), outletID, sessionID)
	if err != nil {
		writeSplitError(w, "view split", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Toggle handles POST /outlets/{oid}/split-sessions/{sid}/toggle.
func (h *SplitHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	outletID, sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	lineID, err := uuid.Parse(req.LineID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line_id"})
		return
	}

	view, err := h.svc.Toggle(r.Context(), outletID, sessionID, lineID)
	if err != nil {
		writeSplitError(w, "toggle split line", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Commit handles POST /outlets/{oid}/split-sessions/{sid}/commit.
func (h *SplitHandler) Commit(w http.ResponseWriter, r *http.Request) {
	outletID, sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	result, err := h.svc.Commit(r.Context(), outletID, sessionID, claims.UserID)
	if err != nil {
		writeSplitError(w, "commit split", err)
		return
	}

	writeJSON(w, http.StatusOK, splitResultResponse{
		Original:      toOrderResponse(result.Original),
		New:           toOrderResponse(result.New),
		ActiveOrderID: result.ActiveOrderID,
		Screen:        result.Screen,
	})
}

// Close handles DELETE /outlets/{oid}/split-sessions/{sid}.
func (h *SplitHandler) Close(w http.ResponseWriter, r *http.Request) {
	outletID, sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}

	if err := h.svc.Close(r.Context(), outletID, sessionID); err != nil {
		writeSplitError(w, "close split", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseSessionPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	outletID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid outlet ID"})
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return outletID, sessionID, true
}

func writeSplitError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNothingSelected),
		errors.Is(err, service.ErrEmptyLines):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSplitDisallowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderSplitAway),
		errors.Is(err, service.ErrOrderMismatch):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		slog.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
