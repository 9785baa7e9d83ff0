package storage

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// ErrAlreadySucceeded reports a duplicate success confirmation for a payment
// that is already terminal. Callers treat it as a no-op.
var ErrAlreadySucceeded = errors.New("payment already succeeded")

// Store is the payment-side persistence surface: reading the payment for an
// order, recording the gateway session reference, and applying reconciliation
// outcomes atomically.
type Store interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	SetProviderRef(ctx context.Context, orderID int64, providerRef string) error
	MarkPaymentFailed(ctx context.Context, orderID int64, comment string) error
	MarkPaymentSucceeded(ctx context.Context, orderID int64, transactionID, comment string) error
}
