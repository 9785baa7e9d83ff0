package payment

import "context"

// Session is the order context a gateway needs to open a hosted checkout.
type Session struct {
	OrderID       int64
	Amount        float64
	InvoiceNumber string
	CallbackURL   string
}

// Checkout is a created gateway session: where to send the browser, and the
// provider's reference for later confirmation.
type Checkout struct {
	RedirectURL string
	ProviderRef string
}

// ProviderResult normalizes the loosely-shaped JSON the gateways return into
// one authoritative success flag. Transport-level 2xx with a non-success
// internal status code decodes to Success=false. Raw keeps the decoded
// payload for logging.
type ProviderResult struct {
	Success       bool
	Reference     string
	TransactionID string
	Raw           map[string]interface{}
}

// Gateway is the per-provider adapter shape. Adapters are stateless per call
// and never retry; retries, if any, belong to the caller.
type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, session Session) (*Checkout, error)
	Confirm(ctx context.Context, providerRef string) (*ProviderResult, error)
}
