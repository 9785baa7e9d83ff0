package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/payment/reconcile"
	"storefront/internal/payment/storage"
	"storefront/internal/utils"

	"github.com/gin-gonic/gin"
)

// PaymentHandler exposes the hosted-checkout endpoints: one create endpoint
// per provider, and the callback URL the provider sends the browser back to.
type PaymentHandler struct {
	store           storage.Store
	reconciler      *reconcile.Service
	gateways        map[string]payment.Gateway
	logger          *logger.Logger
	callbackBaseURL string
	frontendURL     string
}

func NewPaymentHandler(store storage.Store, reconciler *reconcile.Service, gateways map[string]payment.Gateway, logger *logger.Logger, callbackBaseURL, frontendURL string) *PaymentHandler {
	return &PaymentHandler{
		store:           store,
		reconciler:      reconciler,
		gateways:        gateways,
		logger:          logger,
		callbackBaseURL: callbackBaseURL,
		frontendURL:     frontendURL,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/payments")
	{
		api.POST("/bkash/create", h.CreateBkashPayment)
		api.GET("/bkash/callback", h.BkashCallback)
		api.POST("/nagad/create", h.CreateNagadPayment)
		api.GET("/nagad/callback", h.NagadCallback)
	}
}

func (h *PaymentHandler) CreateBkashPayment(c *gin.Context) {
	h.createPayment(c, "bkash", models.MethodBkash)
}

func (h *PaymentHandler) CreateNagadPayment(c *gin.Context) {
	h.createPayment(c, "nagad", models.MethodNagad)
}

func (h *PaymentHandler) createPayment(c *gin.Context, provider string, method models.PaymentMethod) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if req.OrderID <= 0 {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "order_id is required"))
		return
	}

	gateway, ok := h.gateways[provider]
	if !ok {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Unknown payment provider", provider))
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), req.OrderID)
	if err != nil {
		h.writeError(c, err, "Failed to load order")
		return
	}
	if order.PaymentMethod != method {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request",
			fmt.Sprintf("Order %d was placed with payment method %s, not %s", order.ID, order.PaymentMethod, method)))
		return
	}

	pay, err := h.store.GetPaymentByOrderID(c.Request.Context(), req.OrderID)
	if err != nil {
		h.writeError(c, err, "Failed to load payment record")
		return
	}
	if pay.Status == models.PaymentSuccess {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request", "Payment for this order already succeeded"))
		return
	}

	// The amount always comes from the stored order, never from the client.
	session := payment.Session{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		InvoiceNumber: utils.GenerateInvoiceNumber(order.ID),
		CallbackURL:   fmt.Sprintf("%s/api/payments/%s/callback?orderId=%d", h.callbackBaseURL, provider, order.ID),
	}

	checkout, err := gateway.CreatePayment(c.Request.Context(), session)
	if err != nil {
		h.logger.LogPayment(provider, "CREATE", fmt.Sprintf("Failed to create session for order %d: %v", order.ID, err))
		h.writeError(c, err, "Failed to create payment session")
		return
	}

	if err := h.store.SetProviderRef(c.Request.Context(), order.ID, checkout.ProviderRef); err != nil {
		h.logger.LogPayment(provider, "CREATE", fmt.Sprintf("Failed to store provider ref for order %d: %v", order.ID, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to record payment session", err.Error()))
		return
	}

	h.logger.LogPayment(provider, "CREATE", fmt.Sprintf("Session %s created for order %d", checkout.ProviderRef, order.ID))
	c.JSON(http.StatusOK, utils.SuccessResponse("Payment session created", models.CreatePaymentResponse{
		PaymentURL: checkout.RedirectURL,
		PaymentID:  checkout.ProviderRef,
	}))
}

// BkashCallback handles the browser return from bKash hosted checkout.
// bKash appends paymentID and status ("success", "failure" or "cancel") to
// the callback URL we registered at create time.
func (h *PaymentHandler) BkashCallback(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Query("orderId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid callback", "orderId query parameter is required"))
		return
	}

	cb := reconcile.Callback{
		Provider:       "bkash",
		OrderID:        orderID,
		ProviderRef:    c.Query("paymentID"),
		ClaimedSuccess: strings.EqualFold(c.Query("status"), "success"),
	}
	h.finishCallback(c, cb)
}

// NagadCallback handles the browser return from Nagad. Nagad appends
// payment_ref_id and status ("Success", "Failed" or "Aborted") to the
// merchant callback URL.
func (h *PaymentHandler) NagadCallback(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Query("orderId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid callback", "orderId query parameter is required"))
		return
	}

	cb := reconcile.Callback{
		Provider:       "nagad",
		OrderID:        orderID,
		ProviderRef:    c.Query("payment_ref_id"),
		ClaimedSuccess: strings.EqualFold(c.Query("status"), "success"),
	}
	h.finishCallback(c, cb)
}

func (h *PaymentHandler) finishCallback(c *gin.Context, cb reconcile.Callback) {
	outcome, err := h.reconciler.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		if models.IsKind(err, models.KindBadRequest) {
			appErr := models.AsAppError(err)
			c.JSON(appErr.StatusCode, utils.ErrorResponse("Invalid callback", appErr.Message))
			return
		}
		// The browser is mid-redirect; an error page here strands the
		// customer. Send them to the frontend and let it poll the order.
		h.logger.LogPayment(cb.Provider, "CALLBACK", fmt.Sprintf("Reconciliation error for order %d: %v", cb.OrderID, err))
		c.Redirect(http.StatusFound, fmt.Sprintf("%s/order-success?orderId=%d&payment=failed", h.frontendURL, cb.OrderID))
		return
	}

	c.Redirect(http.StatusFound, outcome.RedirectURL)
}

func (h *PaymentHandler) writeError(c *gin.Context, err error, fallback string) {
	appErr := models.AsAppError(err)
	if appErr.Kind == models.KindInternal {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse(fallback, err.Error()))
		return
	}
	c.JSON(appErr.StatusCode, utils.ErrorResponse(appErr.Message, appErr.Error()))
}
