package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/restaurant/internal/auth"
	"github.com/kiwari-pos/restaurant/internal/database"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errOutletInactive     = errors.New("outlet is inactive")
)

// AuthStore defines the database methods needed to start a terminal session.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetOutlet(ctx context.Context, id uuid.UUID) (database.Outlet, error)
	GetPosConfig(ctx context.Context, outletID uuid.UUID) (database.PosConfig, error)
}

// AuthHandler signs terminals in. Besides the token pair, every response
// carries the outlet's POS config so the terminal knows whether the
// restaurant screens (floor plan, guests, split bill) apply.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	User         userResponse      `json:"user"`
	Outlet       outletResponse    `json:"outlet"`
	Config       posConfigResponse `json:"config"`
}

type userResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}

type outletResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type posConfigResponse struct {
	ModuleRestaurant      bool     `json:"module_restaurant"`
	SetTipAfterPayment    bool     `json:"set_tip_after_payment"`
	PreparationCategories []string `json:"preparation_categories"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, pgx.ErrNoRows) {
		err = errInvalidCredentials
	}
	if err == nil && bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		err = errInvalidCredentials
	}
	if err != nil {
		writeAuthError(w, "login", err)
		return
	}

	h.startSession(w, r.Context(), user)
}

// Refresh handles POST /auth/refresh. The user is reloaded so a deactivated
// account cannot keep refreshing.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
		return
	}

	userID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = errInvalidCredentials
	}
	if err != nil {
		writeAuthError(w, "refresh", err)
		return
	}

	h.startSession(w, r.Context(), user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, ctx context.Context, user database.User) {
	resp, err := h.session(ctx, user)
	if err != nil {
		writeAuthError(w, "start session", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) session(ctx context.Context, user database.User) (sessionResponse, error) {
	outlet, err := h.store.GetOutlet(ctx, user.OutletID)
	if err != nil {
		return sessionResponse{}, fmt.Errorf("get outlet: %w", err)
	}
	if !outlet.IsActive {
		return sessionResponse{}, errOutletInactive
	}

	// An outlet without a config row runs as a plain POS.
	cfg, err := h.store.GetPosConfig(ctx, user.OutletID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return sessionResponse{}, fmt.Errorf("get pos config: %w", err)
	}
	categories := cfg.PreparationCategories
	if categories == nil {
		categories = []string{}
	}

	accessToken, err := auth.GenerateToken(h.jwtSecret, user.ID, user.OutletID, user.Role)
	if err != nil {
		return sessionResponse{}, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := auth.GenerateRefreshToken(h.jwtSecret, user.ID)
	if err != nil {
		return sessionResponse{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return sessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: userResponse{
			ID:       user.ID,
			FullName: user.FullName,
			Email:    user.Email,
			Role:     user.Role,
		},
		Outlet: outletResponse{ID: outlet.ID, Name: outlet.Name},
		Config: posConfigResponse{
			ModuleRestaurant:      cfg.ModuleRestaurant,
			SetTipAfterPayment:    cfg.SetTipAfterPayment,
			PreparationCategories: categories,
		},
	}, nil
}

func writeAuthError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, errInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, errOutletInactive):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		slog.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}
