package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	MethodCOD   PaymentMethod = "COD"
	MethodBkash PaymentMethod = "BKASH"
	MethodNagad PaymentMethod = "NAGAD"
)

// IsValidPaymentMethod reports whether m is a recognized payment method.
func IsValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCOD, MethodBkash, MethodNagad:
		return true
	}
	return false
}

// IsOnline reports whether the method goes through a payment gateway.
func (m PaymentMethod) IsOnline() bool {
	return m == MethodBkash || m == MethodNagad
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is one-to-one with an Order and exists from order creation. The
// method is fixed at placement; status SUCCESS is terminal.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID      int64         `bun:"id,pk,autoincrement" json:"id"`
	OrderID int64         `bun:"order_id,notnull,unique" json:"order_id"`
	Method  PaymentMethod `bun:"method,notnull" json:"method"`
	Status  PaymentStatus `bun:"status,notnull" json:"status"`
	Amount  float64       `bun:"amount,notnull" json:"amount"`

	// ProviderRef is the gateway's session identifier (bKash paymentID, Nagad
	// payment reference id), set when a checkout session is created.
	ProviderRef   string `bun:"provider_ref,nullzero" json:"provider_ref,omitempty"`
	TransactionID string `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// CreatePaymentRequest starts a gateway checkout session for an order.
type CreatePaymentRequest struct {
	OrderID int64 `json:"orderId"`
}

// CreatePaymentResponse carries the hosted checkout redirect for the browser.
type CreatePaymentResponse struct {
	PaymentURL string `json:"paymentURL"`
	PaymentID  string `json:"paymentID"`
}
