package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/payment/reconcile"
	"storefront/internal/payment/storage"

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
}

func (m *MockGateway) Name() string { return "bkash" }

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

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) PublishPaymentResult(orderID int64, provider, transactionID string, success bool) error {
	args := m.Called(orderID, provider, transactionID, success)
	return args.Error(0)
}

func newService(store *MockStore, gateway *MockGateway, events reconcile.EventPublisher) *reconcile.Service {
	return reconcile.NewService(
		store,
		map[string]payment.Gateway{"bkash": gateway},
		nil,
		events,
		logger.NewLogger(),
		"http://shop.example.com",
	)
}

func pendingPayment(orderID int64) *models.Payment {
	return &models.Payment{OrderID: orderID, Method: models.MethodBkash, Status: models.PaymentPending}
}

func TestHandleCallback_RejectsMissingParameters(t *testing.T) {
	svc := newService(new(MockStore), new(MockGateway), nil)

	_, err := svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 0, ProviderRef: "TR0011",
	})
	assert.True(t, models.IsKind(err, models.KindBadRequest))

	_, err = svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 7, ProviderRef: "",
	})
	assert.True(t, models.IsKind(err, models.KindBadRequest))

	_, err = svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "paypal", OrderID: 7, ProviderRef: "TR0011",
	})
	assert.True(t, models.IsKind(err, models.KindBadRequest))
}

func TestHandleCallback_VerifiedSuccess(t *testing.T) {
	store := new(MockStore)
	store.On("GetPaymentByOrderID", mock.Anything, int64(7)).Return(pendingPayment(7), nil)
	store.On("MarkPaymentSucceeded", mock.Anything, int64(7), "TRX99", mock.Anything).Return(nil)

	gateway := new(MockGateway)
	gateway.On("Confirm", mock.Anything, "TR0011").Return(&payment.ProviderResult{
		Success:       true,
		TransactionID: "TRX99",
	}, nil)

	events := new(MockEvents)
	events.On("PublishPaymentResult", int64(7), "bkash", "TRX99", true).Return(nil)

	svc := newService(store, gateway, events)

	outcome, err := svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 7, ProviderRef: "TR0011", ClaimedSuccess: true,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Paid)
	assert.Equal(t, "http://shop.example.com/order-success?orderId=7&payment=success", outcome.RedirectURL)
	store.AssertExpectations(t)
	gateway.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestHandleCallback_ClaimedSuccessNotTrusted(t *testing.T) {
	store := new(MockStore)
	store.On("GetPaymentByOrderID", mock.Anything, int64(7)).Return(pendingPayment(7), nil)
	store.On("MarkPaymentFailed", mock.Anything, int64(7), mock.Anything).Return(nil)

	gateway := new(MockGateway)
	gateway.On("Confirm", mock.Anything, "TR0011").Return(&payment.ProviderResult{
		Success: false,
	}, nil)

	events := new(MockEvents)
	events.On("PublishPaymentResult", int64(7), "bkash", "", false).Return(nil)

	svc := newService(store, gateway, events)

	outcome, err := svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 7, ProviderRef: "TR0011", ClaimedSuccess: true,
	})
	require.NoError(t, err)
	assert.False(t, outcome.Paid)
	assert.Contains(t, outcome.RedirectURL, "payment=failed")
	store.AssertNotCalled(t, "MarkPaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallback_CancelSkipsVerification(t *testing.T) {
	store := new(MockStore)
	store.On("GetPaymentByOrderID", mock.Anything, int64(7)).Return(pendingPayment(7), nil)
	store.On("MarkPaymentFailed", mock.Anything, int64(7), mock.Anything).Return(nil)

	gateway := new(MockGateway)
	svc := newService(store, gateway, nil)

	outcome, err := svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 7, ProviderRef: "TR0011", ClaimedSuccess: false,
	})
	require.NoError(t, err)
	assert.False(t, outcome.Paid)
	gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestHandleCallback_VerificationErrorFailsPayment(t *testing.T) {
	store := new(MockStore)
	store.On("GetPaymentByOrderID", mock.Anything, int64(7)).Return(pendingPayment(7), nil)
	store.On("MarkPaymentFailed", mock.Anything, int64(7), mock.Anything).Return(nil)

	gateway := new(MockGateway)
	gateway.On("Confirm", mock.Anything, "TR0011").Return(nil, models.ErrUpstream("gateway timeout", errors.New("timeout")))

	svc := newService(store, gateway, nil)

	outcome, err := svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 7, ProviderRef: "TR0011", ClaimedSuccess: true,
	})
	// An upstream error still resolves to a redirect, not an API error.
	require.NoError(t, err)
	assert.False(t, outcome.Paid)
}

func TestHandleCallback_DuplicateSuccessIsNoOp(t *testing.T) {
	store := new(MockStore)
	store.On("GetPaymentByOrderID", mock.Anything, int64(7)).Return(&models.Payment{
		OrderID: 7, Method: models.MethodBkash, Status: models.PaymentSuccess, TransactionID: "TRX99",
	}, nil)

	gateway := new(MockGateway)
	svc := newService(store, gateway, nil)

	outcome, err := svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 7, ProviderRef: "TR0011", ClaimedSuccess: true,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Paid)
	gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkPaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallback_RaceLostToSuccess(t *testing.T) {
	// The payment read PENDING, but a success landed before our failure write.
	store := new(MockStore)
	store.On("GetPaymentByOrderID", mock.Anything, int64(7)).Return(pendingPayment(7), nil)
	store.On("MarkPaymentFailed", mock.Anything, int64(7), mock.Anything).Return(storage.ErrAlreadySucceeded)

	svc := newService(store, new(MockGateway), nil)

	outcome, err := svc.HandleCallback(context.Background(), reconcile.Callback{
		Provider: "bkash", OrderID: 7, ProviderRef: "TR0011", ClaimedSuccess: false,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Paid)
}
