// Package http exposes the service over a chi router. The idempotency-key
// boundary lives here: requests without an Idempotency-Key header get a
// fresh random key before the ledger ever sees the call.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cafepoint/internal/model"
	"cafepoint/internal/service"
)

// IdempotencyKeyHeader carries the caller-supplied retry key.
const IdempotencyKeyHeader = "Idempotency-Key"

type ctxKey int

const accountIDKey ctxKey = iota

// Handler wires the services into HTTP endpoints.
type Handler struct {
	ledger *service.PointLedger
	orders *service.OrderService
	menus  *service.MenuService
	auth   *service.AuthService
	log    *slog.Logger
}

func NewHandler(ledger *service.PointLedger, orders *service.OrderService, menus *service.MenuService, auth *service.AuthService, log *slog.Logger) *Handler {
	return &Handler{ledger: ledger, orders: orders, menus: menus, auth: auth, log: log}
}

// Router builds the route tree with the standard middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(NewStructuredLogger(h.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/signup", h.SignUp)
	r.Post("/auth/signin", h.SignIn)

	r.Get("/menus", h.ListMenus)
	r.Get("/menus/popular", h.PopularMenus)
	r.Get("/menus/{menuID}", h.GetMenu)

	r.Route("/users/{userID}/points", func(r chi.Router) {
		r.Get("/", h.GetPoints)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/charge", h.ChargePoints)
		r.Post("/deduct", h.DeductPoints)
	})

	r.With(h.requireAuth).Post("/orders", h.CreateOrder)

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	account, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, account)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	token, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.menus.ListMenus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if menus == nil {
		menus = []model.Menu{}
	}
	h.respondJSON(w, http.StatusOK, menus)
}

func (h *Handler) PopularMenus(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.menus.PopularMenus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ranked == nil {
		ranked = []model.PopularMenu{}
	}
	h.respondJSON(w, http.StatusOK, ranked)
}

func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.menus.GetMenu(r.Context(), chi.URLParam(r, "menuID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, menu)
}

func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	points, err := h.ledger.GetBalance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"points": points})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.ListTransactions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if txs == nil {
		txs = []model.PointTransaction{}
	}
	h.respondJSON(w, http.StatusOK, txs)
}

func (h *Handler) ChargePoints(w http.ResponseWriter, r *http.Request) {
	h.mutatePoints(w, r, h.ledger.Charge)
}

func (h *Handler) DeductPoints(w http.ResponseWriter, r *http.Request) {
	h.mutatePoints(w, r, h.ledger.Deduct)
}

func (h *Handler) mutatePoints(w http.ResponseWriter, r *http.Request, op func(context.Context, string, int64, string) (*model.PointTransaction, error)) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	tx, err := op(r.Context(), chi.URLParam(r, "userID"), req.Amount, idempotencyKey(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tx)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value(accountIDKey).(string)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Items []model.OrderLine `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), accountID, req.Items, idempotencyKey(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, order)
}

// requireAuth validates the bearer token and stashes the account id.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			h.respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		accountID, err := h.auth.Verify(token)
		if err != nil {
			h.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// idempotencyKey returns the caller's key or generates a fresh one, so
// every mutating call below this point carries a non-empty key.
func idempotencyKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		return key
	}
	return uuid.New().String()
}

// writeError maps domain errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrAccountNotFound), errors.Is(err, model.ErrMenuNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInsufficientBalance):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrEmailTaken), errors.Is(err, model.ErrConflict):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrLockTimeout):
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrInvalidInput):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
