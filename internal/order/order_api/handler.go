package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/order"
	"storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Logger:       log,
	}
}

// RegisterRoutes mounts the storefront order endpoints. Checkout accepts both
// guests and logged-in users; "my orders" requires a token; admin status
// updates require the manage_orders permission.
func (h *Handler) RegisterRoutes(r chi.Router, jwtSecret string) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(jwtSecret))
			r.Post("/", h.PlaceOrder)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))
			r.Get("/my", h.GetMyOrders)
			r.Get("/{orderId}", h.GetOrder)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))
			r.Use(auth.RequirePermission(auth.PermissionManageOrders))
			r.Put("/admin/{orderId}/status", h.UpdateStatus)
			r.Get("/admin/{orderId}/history", h.GetOrderHistory)
		})
	})
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PlaceOrder: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	var userID *int64
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		userID = &id
	}

	placed, err := h.OrderService.PlaceOrder(r.Context(), userID, req, clientIP(r))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PlaceOrder: checkout failed: %v", err))
		h.writeError(w, err, "Failed to place order")
		return
	}

	h.Logger.Info("API", fmt.Sprintf("PlaceOrder: order %d created", placed.ID))
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Order placed successfully", placed))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid order id", chi.URLParam(r, "orderId")))
		return
	}

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: order %d not found: %v", orderID, err))
		h.writeError(w, err, "Failed to retrieve order")
		return
	}

	// Registered customers only see their own orders. Guest orders have no
	// owner and stay readable by order id.
	if orderData.UserID != nil {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID != *orderData.UserID {
			h.writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "order belongs to another customer"))
			return
		}
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", orderData))
}

func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing user identity"))
		return
	}

	orders, err := h.OrderService.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetMyOrders: failed for user %d: %v", userID, err))
		h.writeError(w, err, "Failed to retrieve orders")
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Orders retrieved", orders))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid order id", chi.URLParam(r, "orderId")))
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.OrderService.UpdateStatus(r.Context(), orderID, req.Status, req.Comment)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateStatus: order %d to %s failed: %v", orderID, req.Status, err))
		h.writeError(w, err, "Failed to update order status")
		return
	}

	h.Logger.Info("API", fmt.Sprintf("UpdateStatus: order %d moved to %s", orderID, req.Status))
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order status updated", updated))
}

func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid order id", chi.URLParam(r, "orderId")))
		return
	}

	history, err := h.OrderService.GetOrderHistory(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrderHistory: order %d failed: %v", orderID, err))
		h.writeError(w, err, "Failed to retrieve order history")
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order history retrieved", history))
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	appErr := models.AsAppError(err)
	if appErr.Kind == models.KindInternal {
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse(fallback, err.Error()))
		return
	}
	h.writeJSON(w, appErr.StatusCode, utils.ErrorResponse(appErr.Message, appErr.Error()))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the socket
// address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
