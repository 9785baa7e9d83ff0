package bkash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/settings"
)

const (
	sandboxBaseURL = "https://tokenized.sandbox.bka.sh/v1.2.0-beta"
	liveBaseURL    = "https://tokenized.pay.bka.sh/v1.2.0-beta"

	// bKash's own success indicator; the transport status is not authoritative.
	statusCodeSuccess = "0000"
)

// Client implements the tokenized checkout flow: grant a short-lived bearer
// token, create a hosted checkout session, and later execute the payment from
// the callback. Tokens are deliberately not cached across calls; credentials
// come from the dynamic settings store so they rotate without a redeploy.
type Client struct {
	Settings settings.Store
	HTTP     *http.Client
	Logger   *logger.Logger

	// BaseURL overrides the env-derived endpoint in tests.
	BaseURL string
}

func New(store settings.Store, httpClient *http.Client, log *logger.Logger) *Client {
	return &Client{Settings: store, HTTP: httpClient, Logger: log}
}

func (c *Client) Name() string { return "bkash" }

func (c *Client) baseURL(env string) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if env == "live" || env == "production" {
		return liveBaseURL
	}
	return sandboxBaseURL
}

type tokenResponse struct {
	IDToken    string `json:"id_token"`
	TokenType  string `json:"token_type"`
	StatusCode string `json:"statusCode"`
	StatusMsg  string `json:"statusMessage"`
}

type createResponse struct {
	PaymentID  string `json:"paymentID"`
	BkashURL   string `json:"bkashURL"`
	StatusCode string `json:"statusCode"`
	StatusMsg  string `json:"statusMessage"`
}

type executeResponse struct {
	PaymentID         string `json:"paymentID"`
	TrxID             string `json:"trxID"`
	TransactionStatus string `json:"transactionStatus"`
	StatusCode        string `json:"statusCode"`
	StatusMsg         string `json:"statusMessage"`
}

// grantToken exchanges merchant credentials for a short-lived bearer token.
func (c *Client) grantToken(ctx context.Context, cfg *settings.BkashConfig) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"app_key":    cfg.AppKey,
		"app_secret": cfg.AppSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(cfg.Env)+"/tokenized/checkout/token/grant", bytes.NewReader(body))
	if err != nil {
		return "", models.ErrUpstream("bkash: failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("username", cfg.Username)
	req.Header.Set("password", cfg.Password)

	var token tokenResponse
	if _, err := c.do(req, &token); err != nil {
		return "", err
	}

	if token.StatusCode != "" && token.StatusCode != statusCodeSuccess {
		return "", models.ErrUpstream(fmt.Sprintf("bkash: token grant rejected: %s %s", token.StatusCode, token.StatusMsg), nil)
	}
	if token.IDToken == "" {
		return "", models.ErrUpstream("bkash: token grant response missing id_token", nil)
	}
	return token.IDToken, nil
}

// CreatePayment opens a hosted checkout session and returns the bKash URL to
// redirect the customer to, plus the paymentID to confirm with later.
func (c *Client) CreatePayment(ctx context.Context, session payment.Session) (*payment.Checkout, error) {
	cfg, err := c.Settings.Bkash(ctx)
	if err != nil {
		return nil, err
	}

	token, err := c.grantToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{
		"mode":                  "0011",
		"payerReference":        session.InvoiceNumber,
		"callbackURL":           session.CallbackURL,
		"amount":                fmt.Sprintf("%.2f", session.Amount),
		"currency":              "BDT",
		"intent":                "sale",
		"merchantInvoiceNumber": session.InvoiceNumber,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(cfg.Env)+"/tokenized/checkout/create", bytes.NewReader(body))
	if err != nil {
		return nil, models.ErrUpstream("bkash: failed to build create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", token)
	req.Header.Set("X-APP-Key", cfg.AppKey)

	var created createResponse
	if _, err := c.do(req, &created); err != nil {
		return nil, err
	}

	if created.StatusCode != statusCodeSuccess {
		return nil, models.ErrUpstream(fmt.Sprintf("bkash: create payment rejected: %s %s", created.StatusCode, created.StatusMsg), nil)
	}
	if created.PaymentID == "" || created.BkashURL == "" {
		return nil, models.ErrUpstream("bkash: create payment response missing paymentID or bkashURL", nil)
	}

	c.Logger.LogPayment("bkash", "CREATE", fmt.Sprintf("order=%d paymentID=%s", session.OrderID, created.PaymentID))

	return &payment.Checkout{
		RedirectURL: created.BkashURL,
		ProviderRef: created.PaymentID,
	}, nil
}

// Confirm re-grants a token and executes the payment. Only bKash's own
// statusCode decides success; a 2xx execute with a non-success code is a
// failed payment.
func (c *Client) Confirm(ctx context.Context, providerRef string) (*payment.ProviderResult, error) {
	cfg, err := c.Settings.Bkash(ctx)
	if err != nil {
		return nil, err
	}

	token, err := c.grantToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{"paymentID": providerRef})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(cfg.Env)+"/tokenized/checkout/execute", bytes.NewReader(body))
	if err != nil {
		return nil, models.ErrUpstream("bkash: failed to build execute request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", token)
	req.Header.Set("X-APP-Key", cfg.AppKey)

	var executed executeResponse
	raw, err := c.do(req, &executed)
	if err != nil {
		return nil, err
	}

	success := executed.StatusCode == statusCodeSuccess
	c.Logger.LogPayment("bkash", "EXECUTE", fmt.Sprintf("paymentID=%s statusCode=%s trxID=%s", providerRef, executed.StatusCode, executed.TrxID))

	return &payment.ProviderResult{
		Success:       success,
		Reference:     providerRef,
		TransactionID: executed.TrxID,
		Raw:           raw,
	}, nil
}

// do sends the request, treats any HTTP status >= 400 as a hard failure, and
// decodes the body both into out and into a raw map.
func (c *Client) do(req *http.Request, out interface{}) (map[string]interface{}, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, models.ErrUpstream("bkash: request failed", err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.ErrUpstream("bkash: failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		return nil, models.ErrUpstream(fmt.Sprintf("bkash: HTTP %d: %s", resp.StatusCode, string(payloadBytes)), nil)
	}

	if err := json.Unmarshal(payloadBytes, out); err != nil {
		return nil, models.ErrUpstream("bkash: failed to decode response", err)
	}

	raw := map[string]interface{}{}
	_ = json.Unmarshal(payloadBytes, &raw)
	return raw, nil
}
