package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	handlers "storefront/internal/payment/handler"
	"storefront/internal/payment/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockStore) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockStore) SetProviderRef(ctx context.Context, orderID int64, providerRef string) error {
	args := m.Called(ctx, orderID, providerRef)
	return args.Error(0)
}

func (m *MockStore) MarkPaymentFailed(ctx context.Context, orderID int64, comment string) error {
	args := m.Called(ctx, orderID, comment)
	return args.Error(0)
}

func (m *MockStore) MarkPaymentSucceeded(ctx context.Context, orderID int64, transactionID, comment string) error {
	args := m.Called(ctx, orderID, transactionID, comment)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
	name string
}

func (m *MockGateway) Name() string { return m.name }

func (m *MockGateway) CreatePayment(ctx context.Context, session payment.Session) (*payment.Checkout, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Checkout), args.Error(1)
}

func (m *MockGateway) Confirm(ctx context.Context, providerRef string) (*payment.ProviderResult, error) {
	args := m.Called(ctx, providerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ProviderResult), args.Error(1)
}

type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, orderID int64) (bool, error) { return true, nil }
func (noopLocker) Unlock(ctx context.Context, orderID int64) error       { return nil }

func setupRouter(store *MockStore, gateway *MockGateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewLogger()

	gateways := map[string]payment.Gateway{gateway.name: gateway}
	reconciler := reconcile.NewService(store, gateways, noopLocker{}, nil, log, "http://shop.example.com")
	handler := handlers.NewPaymentHandler(store, reconciler, gateways, log,
		"http://pay.example.com", "http://shop.example.com")

	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func bkashOrder(id int64, amount float64) *models.Order {
	return &models.Order{ID: id, TotalAmount: amount, Status: models.OrderPending, PaymentMethod: models.MethodBkash}
}

func TestCreatePayment_ReturnsCheckoutURL(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "bkash"}
	router := setupRouter(store, gateway)

	store.On("GetOrder", mock.Anything, int64(17)).Return(bkashOrder(17, 1250.5), nil)
	store.On("GetPaymentByOrderID", mock.Anything, int64(17)).
		Return(&models.Payment{OrderID: 17, Status: models.PaymentPending}, nil)
	gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(s payment.Session) bool {
		return s.OrderID == 17 && s.Amount == 1250.5 &&
			s.CallbackURL == "http://pay.example.com/api/payments/bkash/callback?orderId=17"
	})).Return(&payment.Checkout{RedirectURL: "https://bkash.example/checkout/TR1", ProviderRef: "TR1"}, nil)
	store.On("SetProviderRef", mock.Anything, int64(17), "TR1").Return(nil)

	body, _ := json.Marshal(models.CreatePaymentRequest{OrderID: 17})
	req := httptest.NewRequest(http.MethodPost, "/api/payments/bkash/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var envelope struct {
		Success bool                         `json:"success"`
		Data    models.CreatePaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "https://bkash.example/checkout/TR1", envelope.Data.PaymentURL)
	assert.Equal(t, "TR1", envelope.Data.PaymentID)
	store.AssertExpectations(t)
}

func TestCreatePayment_RejectsMethodMismatch(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "nagad"}
	router := setupRouter(store, gateway)

	store.On("GetOrder", mock.Anything, int64(17)).Return(bkashOrder(17, 500), nil)

	body, _ := json.Marshal(models.CreatePaymentRequest{OrderID: 17})
	req := httptest.NewRequest(http.MethodPost, "/api/payments/nagad/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestCreatePayment_RejectsAlreadyPaidOrder(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "bkash"}
	router := setupRouter(store, gateway)

	store.On("GetOrder", mock.Anything, int64(17)).Return(bkashOrder(17, 500), nil)
	store.On("GetPaymentByOrderID", mock.Anything, int64(17)).
		Return(&models.Payment{OrderID: 17, Status: models.PaymentSuccess}, nil)

	body, _ := json.Marshal(models.CreatePaymentRequest{OrderID: 17})
	req := httptest.NewRequest(http.MethodPost, "/api/payments/bkash/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestCreatePayment_MissingOrderID(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "bkash"}
	router := setupRouter(store, gateway)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/bkash/create", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBkashCallback_SuccessRedirectsToFrontend(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "bkash"}
	router := setupRouter(store, gateway)

	store.On("GetPaymentByOrderID", mock.Anything, int64(17)).
		Return(&models.Payment{OrderID: 17, Status: models.PaymentPending, ProviderRef: "TR1"}, nil)
	gateway.On("Confirm", mock.Anything, "TR1").
		Return(&payment.ProviderResult{Success: true, Reference: "TR1", TransactionID: "9FJ4"}, nil)
	store.On("MarkPaymentSucceeded", mock.Anything, int64(17), "9FJ4", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/bkash/callback?orderId=17&paymentID=TR1&status=success", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://shop.example.com/order-success?orderId=17&payment=success", rec.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestBkashCallback_CancelRedirectsAsFailed(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "bkash"}
	router := setupRouter(store, gateway)

	store.On("GetPaymentByOrderID", mock.Anything, int64(17)).
		Return(&models.Payment{OrderID: 17, Status: models.PaymentPending, ProviderRef: "TR1"}, nil)
	store.On("MarkPaymentFailed", mock.Anything, int64(17), mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/bkash/callback?orderId=17&paymentID=TR1&status=cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://shop.example.com/order-success?orderId=17&payment=failed", rec.Header().Get("Location"))
	gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestCallback_MissingOrderIDIsAPIError(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "bkash"}
	router := setupRouter(store, gateway)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/bkash/callback?paymentID=TR1&status=success", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNagadCallback_UsesPaymentRefParameter(t *testing.T) {
	store := &MockStore{}
	gateway := &MockGateway{name: "nagad"}
	router := setupRouter(store, gateway)

	store.On("GetPaymentByOrderID", mock.Anything, int64(42)).
		Return(&models.Payment{OrderID: 42, Status: models.PaymentPending, ProviderRef: "NAG-REF-42"}, nil)
	gateway.On("Confirm", mock.Anything, "NAG-REF-42").
		Return(&payment.ProviderResult{Success: true, Reference: "NAG-REF-42", TransactionID: "ISSUER-991"}, nil)
	store.On("MarkPaymentSucceeded", mock.Anything, int64(42), "ISSUER-991", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/nagad/callback?orderId=42&payment_ref_id=NAG-REF-42&status=Success", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://shop.example.com/order-success?orderId=42&payment=success", rec.Header().Get("Location"))
}
