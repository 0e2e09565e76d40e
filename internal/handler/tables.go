package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/database"
	"github.com/kiwari-pos/restaurant/internal/pos"
)

// FloorStore defines the database methods needed by the floor plan handler.
// Satisfied by *database.Queries; narrow interface for testability.
type FloorStore interface {
	ListFloors(ctx context.Context, outletID uuid.UUID) ([]database.Floor, error)
	ListTablesByOutlet(ctx context.Context, outletID uuid.UUID) ([]database.RestaurantTable, error)
}

// FloorHandler serves the outlet's floor plan.
type FloorHandler struct {
	store FloorStore
}

func NewFloorHandler(store FloorStore) *FloorHandler {
	return &FloorHandler{store: store}
}

// RegisterRoutes registers floor endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/floors
func (h *FloorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type floorResponse struct {
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Tables []tableResponse `json:"tables"`
}

type tableResponse struct {
	ID          uuid.UUID `json:"id"`
	TableNumber int       `json:"table_number"`
	Seats       int       `json:"seats"`
}

// List handles GET /outlets/{oid}/floors.
func (h *FloorHandler) List(w http.ResponseWriter, r *http.Request) {
	outletID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid outlet ID"})
		return
	}

	floors, err := h.store.ListFloors(r.Context(), outletID)
	if err != nil {
		slog.Error("list floors", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	tables, err := h.store.ListTablesByOutlet(r.Context(), outletID)
	if err != nil {
		slog.Error("list tables", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	plan := buildFloorPlan(floors, tables)
	resp := make([]floorResponse, len(plan))
	for i, f := range plan {
		resp[i] = floorResponse{ID: f.ID, Name: f.Name, Tables: make([]tableResponse, len(f.Tables))}
		for j, t := range f.Tables {
			resp[i].Tables[j] = tableResponse{ID: t.ID, TableNumber: t.TableNumber, Seats: t.Seats}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// buildFloorPlan groups tables under their floors, keeping the floor order
// of the query. Tables of unknown floors are dropped.
func buildFloorPlan(floors []database.Floor, tables []database.RestaurantTable) []pos.Floor {
	plan := make([]pos.Floor, len(floors))
	index := make(map[uuid.UUID]int, len(floors))
	for i, f := range floors {
		plan[i] = pos.Floor{ID: f.ID, Name: f.Name, Tables: []pos.Table{}}
		index[f.ID] = i
	}
	for _, t := range tables {
		i, ok := index[t.FloorID]
		if !ok {
			continue
		}
		plan[i].Tables = append(plan[i].Tables, pos.Table{
			ID:          t.ID,
			FloorID:     t.FloorID,
			FloorName:   plan[i].Name,
			TableNumber: int(t.TableNumber),
			Seats:       int(t.Seats),
		})
	}
	return plan
}
