package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/orderium/internal/cart/domain"
	"github.com/jcmexdev/orderium/internal/notify/alerts"
	"github.com/jcmexdev/orderium/internal/notify/dispatcher"
)

type CartService interface {
	AddItem(ctx context.Context, product domain.Product, qty int)
	RemoveItem(ctx context.Context, productID int64)
	UpdateQuantity(ctx context.Context, productID int64, qty int)
	ClearCart(ctx context.Context)
	ItemQuantity(ctx context.Context, productID int64) int
	View(ctx context.Context) domain.View
}

type Notifications interface {
	Enable(ctx context.Context)
	Disable()
	Status() dispatcher.Status
}

type AlertFeed interface {
	Recent(limit int) []alerts.Alert
}

// Invalidations reports how often a query key has been invalidated.
type Invalidations interface {
	Version(ctx context.Context, key string) (int64, error)
}

// Handler exposes the cart and the notification subsystem over HTTP.
type Handler struct {
	cart          CartService
	notifications Notifications
	alerts        AlertFeed
	invalidations Invalidations
}

func NewHandler(cart CartService, notifications Notifications, feed AlertFeed, inv Invalidations) *Handler {
	return &Handler{cart: cart, notifications: notifications, alerts: feed, invalidations: inv}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cart.View(r.Context()))
}

// AddItem merges the product into the cart. A missing quantity means 1.
// Quantity and stock rules are the store's; a rejected add still returns
// the unchanged cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Product.ID <= 0 || req.Product.Price < 0 {
		writeError(w, http.StatusBadRequest, "invalid_product", "product.id must be positive and product.price non-negative")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	slog.InfoContext(r.Context(), "adding cart item", "product_id", req.Product.ID, "quantity", qty)
	h.cart.AddItem(r.Context(), req.Product, qty)
	writeJSON(w, http.StatusOK, h.cart.View(r.Context()))
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity_required", "")
		return
	}

	h.cart.UpdateQuantity(r.Context(), id, *req.Quantity)
	writeJSON(w, http.StatusOK, h.cart.View(r.Context()))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	h.cart.RemoveItem(r.Context(), id)
	writeJSON(w, http.StatusOK, h.cart.View(r.Context()))
}

func (h *Handler) ItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ItemQuantityResponse{
		ProductID: id,
		Quantity:  h.cart.ItemQuantity(r.Context(), id),
	})
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.ClearCart(r.Context())
	writeJSON(w, http.StatusOK, h.cart.View(r.Context()))
}

func (h *Handler) NotificationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mapStatus(h.notifications.Status()))
}

func (h *Handler) EnableNotifications(w http.ResponseWriter, r *http.Request) {
	// the channel outlives the request, so only its values are kept
	h.notifications.Enable(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, mapStatus(h.notifications.Status()))
}

func (h *Handler) DisableNotifications(w http.ResponseWriter, r *http.Request) {
	h.notifications.Disable()
	writeJSON(w, http.StatusOK, mapStatus(h.notifications.Status()))
}

func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.alerts.Recent(limit))
}

// QueryVersions returns the invalidation version of each ?key= (default
// "orders"). A version higher than the one the UI last saw means refetch.
func (h *Handler) QueryVersions(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		keys = []string{defaultQueryKey}
	}

	versions := make(map[string]int64, len(keys))
	for _, k := range keys {
		if k == "" {
			writeError(w, http.StatusBadRequest, "invalid_key", "key must not be empty")
			return
		}
		v, err := h.invalidations.Version(r.Context(), k)
		if err != nil {
			slog.ErrorContext(r.Context(), "reading query version", "key", k, "error", err)
			writeError(w, http.StatusBadGateway, "cache_error", err.Error())
			return
		}
		versions[k] = v
	}
	writeJSON(w, http.StatusOK, QueryVersionsResponse{Versions: versions})
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
