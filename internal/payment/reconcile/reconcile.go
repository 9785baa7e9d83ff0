package reconcile

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/payment/storage"
)

// Locker serializes concurrent callbacks for the same order.
type Locker interface {
	Lock(ctx context.Context, orderID int64) (bool, error)
	Unlock(ctx context.Context, orderID int64) error
}

// EventPublisher emits payment outcome events. Publishing is best effort.
type EventPublisher interface {
	PublishPaymentResult(orderID int64, provider, transactionID string, success bool) error
}

// Outcome is what the callback handler renders: where to send the customer's
// browser and whether the payment ended up paid.
type Outcome struct {
	Paid        bool
	RedirectURL string
}

// Callback is the provider-agnostic view of a gateway return: which provider
// called, for which order, the session reference, and whether the provider
// claims success. The claim is never trusted; a claimed success is verified
// against the provider before anything is recorded.
type Callback struct {
	Provider       string
	OrderID        int64
	ProviderRef    string
	ClaimedSuccess bool
}

type Service struct {
	Store       storage.Store
	Gateways    map[string]payment.Gateway
	Locker      Locker
	Events      EventPublisher
	Log         *logger.Logger
	FrontendURL string
}

func NewService(store storage.Store, gateways map[string]payment.Gateway, locker Locker, events EventPublisher, log *logger.Logger, frontendURL string) *Service {
	return &Service{
		Store:       store,
		Gateways:    gateways,
		Locker:      locker,
		Events:      events,
		Log:         log,
		FrontendURL: frontendURL,
	}
}

// HandleCallback reconciles one gateway return against the provider's verify
// API and the local payment record. Every path resolves to a redirect; only
// parameter errors surface as API errors, and only before anything mutates.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (*Outcome, error) {
	if cb.OrderID <= 0 {
		return nil, models.ErrBadRequest("missing or invalid order id in callback")
	}
	if cb.ProviderRef == "" {
		return nil, models.ErrBadRequest("missing payment reference in callback")
	}

	gateway, ok := s.Gateways[cb.Provider]
	if !ok {
		return nil, models.ErrBadRequest("unknown payment provider: " + cb.Provider)
	}

	if s.Locker != nil {
		acquired, err := s.Locker.Lock(ctx, cb.OrderID)
		if err != nil {
			s.Log.LogPayment(cb.Provider, "LOCK", fmt.Sprintf("Lock error for order %d: %v", cb.OrderID, err))
		} else if !acquired {
			// Another callback for this order is mid-flight. Its outcome will
			// land; this delivery just reports the current state.
			return s.currentState(ctx, cb)
		} else {
			defer func() {
				if err := s.Locker.Unlock(context.Background(), cb.OrderID); err != nil {
					s.Log.LogPayment(cb.Provider, "LOCK", fmt.Sprintf("Unlock error for order %d: %v", cb.OrderID, err))
				}
			}()
		}
	}

	pay, err := s.Store.GetPaymentByOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	if pay.Status == models.PaymentSuccess {
		s.Log.LogPayment(cb.Provider, "CALLBACK", fmt.Sprintf("Duplicate callback for order %d, payment already succeeded", cb.OrderID))
		return s.outcome(cb.OrderID, true), nil
	}

	if !cb.ClaimedSuccess {
		return s.fail(ctx, cb, "Payment cancelled or failed at "+cb.Provider)
	}

	result, err := gateway.Confirm(ctx, cb.ProviderRef)
	if err != nil {
		// Verification failure is a payment failure, not an API failure: the
		// customer still gets redirected somewhere sensible.
		s.Log.LogPayment(cb.Provider, "VERIFY", fmt.Sprintf("Verification error for order %d: %v", cb.OrderID, err))
		return s.fail(ctx, cb, "Payment verification failed at "+cb.Provider)
	}
	if !result.Success {
		s.Log.LogPayment(cb.Provider, "VERIFY", fmt.Sprintf("Provider reported failure for order %d", cb.OrderID))
		return s.fail(ctx, cb, "Payment not completed at "+cb.Provider)
	}

	comment := fmt.Sprintf("Payment confirmed via %s (txn %s)", cb.Provider, result.TransactionID)
	err = s.Store.MarkPaymentSucceeded(ctx, cb.OrderID, result.TransactionID, comment)
	if errors.Is(err, storage.ErrAlreadySucceeded) {
		return s.outcome(cb.OrderID, true), nil
	}
	if err != nil {
		return nil, err
	}

	s.Log.LogPayment(cb.Provider, "SUCCESS", fmt.Sprintf("Order %d paid, txn %s", cb.OrderID, result.TransactionID))
	s.publish(cb, result.TransactionID, true)
	return s.outcome(cb.OrderID, true), nil
}

func (s *Service) fail(ctx context.Context, cb Callback, comment string) (*Outcome, error) {
	err := s.Store.MarkPaymentFailed(ctx, cb.OrderID, comment)
	if errors.Is(err, storage.ErrAlreadySucceeded) {
		// A success landed between our read and this write. Keep it.
		return s.outcome(cb.OrderID, true), nil
	}
	if err != nil {
		return nil, err
	}
	s.publish(cb, "", false)
	return s.outcome(cb.OrderID, false), nil
}

// currentState reports the payment's present status without mutating, for
// deliveries that lost the callback lock.
func (s *Service) currentState(ctx context.Context, cb Callback) (*Outcome, error) {
	pay, err := s.Store.GetPaymentByOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	return s.outcome(cb.OrderID, pay.Status == models.PaymentSuccess), nil
}

func (s *Service) publish(cb Callback, transactionID string, success bool) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishPaymentResult(cb.OrderID, cb.Provider, transactionID, success); err != nil {
		s.Log.LogPayment(cb.Provider, "EVENT", fmt.Sprintf("Failed to publish payment event for order %d: %v", cb.OrderID, err))
	}
}

func (s *Service) outcome(orderID int64, paid bool) *Outcome {
	status := "failed"
	if paid {
		status = "success"
	}
	return &Outcome{
		Paid:        paid,
		RedirectURL: fmt.Sprintf("%s/order-success?orderId=%d&payment=%s", s.FrontendURL, orderID, status),
	}
}
