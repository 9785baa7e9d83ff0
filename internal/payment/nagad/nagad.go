package nagad

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/settings"
)

const (
	sandboxBaseURL = "http://sandbox.mynagad.com:10080/remote-payment-gateway-1.0/api/dfs"
	liveBaseURL    = "https://api.mynagad.com/api/dfs"

	apiVersion = "v-0.2.0"
	// ISO 4217 numeric code for BDT.
	currencyCode = "050"

	statusCodeSuccess = "000"
)

// Client implements Nagad's asymmetric-crypto checkout handshake:
// initialize with an encrypted+signed sensitive payload, decrypt the response
// to recover the payment reference and server challenge, complete with a
// second encrypted payload, and verify via a separate GET after the callback.
type Client struct {
	Settings settings.Store
	HTTP     *http.Client
	Logger   *logger.Logger

	// BaseURL overrides the env-derived endpoint in tests.
	BaseURL string
	// now is swappable in tests; the provider rejects mismatched clocks.
	now func() time.Time
}

func New(store settings.Store, httpClient *http.Client, log *logger.Logger) *Client {
	return &Client{Settings: store, HTTP: httpClient, Logger: log, now: time.Now}
}

func (c *Client) Name() string { return "nagad" }

func (c *Client) baseURL(env string) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if env == "live" || env == "production" {
		return liveBaseURL
	}
	return sandboxBaseURL
}

// timestamp formats the current time as YYYYMMDDHHmmss in Bangladesh time.
func (c *Client) timestamp() string {
	loc, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		loc = time.FixedZone("BST", 6*60*60)
	}
	return c.now().In(loc).Format("20060102150405")
}

type initializeSensitive struct {
	MerchantID string `json:"merchantId"`
	DateTime   string `json:"datetime"`
	OrderID    string `json:"orderId"`
	Challenge  string `json:"challenge"`
}

type initializeDecrypted struct {
	PaymentReferenceID string `json:"paymentReferenceId"`
	Challenge          string `json:"challenge"`
}

type completeSensitive struct {
	MerchantID   string `json:"merchantId"`
	OrderID      string `json:"orderId"`
	CurrencyCode string `json:"currencyCode"`
	Amount       string `json:"amount"`
	Challenge    string `json:"challenge"`
}

type gatewayResponse struct {
	SensitiveData string `json:"sensitiveData"`
	Signature     string `json:"signature"`
	CallBackURL   string `json:"callBackUrl"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	Message       string `json:"message"`
}

type verifyResponse struct {
	Status             string `json:"status"`
	StatusCode         string `json:"statusCode"`
	Message            string `json:"message"`
	PaymentRefID       string `json:"paymentRefId"`
	IssuerPaymentRefNo string `json:"issuerPaymentRefNo"`
	OrderID            string `json:"orderId"`
	Amount             string `json:"amount"`
}

// CreatePayment runs initialize + complete and returns the customer-facing
// redirect URL with the payment reference id.
func (c *Client) CreatePayment(ctx context.Context, session payment.Session) (*payment.Checkout, error) {
	cfg, err := c.Settings.Nagad(ctx)
	if err != nil {
		return nil, err
	}

	merchantPriv, err := parsePrivateKey(cfg.MerchantPrivateKey)
	if err != nil {
		return nil, models.ErrBadRequest("nagad: merchant private key is not usable: " + err.Error())
	}
	pgPub, err := parsePublicKey(cfg.PGPublicKey)
	if err != nil {
		return nil, models.ErrBadRequest("nagad: gateway public key is not usable: " + err.Error())
	}

	orderID := fmt.Sprintf("%d", session.OrderID)
	dateTime := c.timestamp()

	// Step 1: initialize with the first sensitive payload. The challenge is a
	// SHA-1 hash of the order id.
	challengeSum := sha1.Sum([]byte(orderID))
	initPayload, _ := json.Marshal(initializeSensitive{
		MerchantID: cfg.MerchantID,
		DateTime:   dateTime,
		OrderID:    orderID,
		Challenge:  hex.EncodeToString(challengeSum[:]),
	})

	encrypted, err := encryptSensitiveData(initPayload, pgPub)
	if err != nil {
		return nil, models.ErrUpstream("nagad: failed to encrypt initialize payload", err)
	}
	signature, err := signPayload(initPayload, merchantPriv)
	if err != nil {
		return nil, models.ErrUpstream("nagad: failed to sign initialize payload", err)
	}

	initURL := fmt.Sprintf("%s/check-out/initialize/%s/%s", c.baseURL(cfg.Env), cfg.MerchantID, orderID)
	initResp, _, err := c.post(ctx, initURL, map[string]string{
		"accountNumber": "",
		"dateTime":      dateTime,
		"sensitiveData": encrypted,
		"signature":     signature,
	})
	if err != nil {
		return nil, err
	}
	if initResp.SensitiveData == "" {
		return nil, models.ErrUpstream("nagad: initialize response missing sensitive data: "+initResp.Message+initResp.Reason, nil)
	}

	// Step 2: decrypt the response to recover the payment reference and the
	// server-issued challenge.
	decrypted, err := decryptSensitiveData(initResp.SensitiveData, merchantPriv)
	if err != nil {
		return nil, models.ErrUpstream("nagad: failed to decrypt initialize response", err)
	}
	var initData initializeDecrypted
	if err := json.Unmarshal(decrypted, &initData); err != nil {
		return nil, models.ErrUpstream("nagad: failed to decode initialize sensitive data", err)
	}
	if initData.PaymentReferenceID == "" || initData.Challenge == "" {
		return nil, models.ErrUpstream("nagad: initialize sensitive data missing reference or challenge", nil)
	}

	// Step 3: complete with the server's challenge echoed back.
	completePayload, _ := json.Marshal(completeSensitive{
		MerchantID:   cfg.MerchantID,
		OrderID:      orderID,
		CurrencyCode: currencyCode,
		Amount:       fmt.Sprintf("%.2f", session.Amount),
		Challenge:    initData.Challenge,
	})

	encryptedComplete, err := encryptSensitiveData(completePayload, pgPub)
	if err != nil {
		return nil, models.ErrUpstream("nagad: failed to encrypt complete payload", err)
	}
	signatureComplete, err := signPayload(completePayload, merchantPriv)
	if err != nil {
		return nil, models.ErrUpstream("nagad: failed to sign complete payload", err)
	}

	completeURL := fmt.Sprintf("%s/check-out/complete/%s", c.baseURL(cfg.Env), initData.PaymentReferenceID)
	completeResp, _, err := c.post(ctx, completeURL, map[string]string{
		"sensitiveData":       encryptedComplete,
		"signature":           signatureComplete,
		"merchantCallbackURL": session.CallbackURL,
	})
	if err != nil {
		return nil, err
	}
	if completeResp.CallBackURL == "" {
		return nil, models.ErrUpstream("nagad: complete response missing redirect URL: "+completeResp.Message+completeResp.Reason, nil)
	}

	c.Logger.LogPayment("nagad", "CREATE", fmt.Sprintf("order=%d paymentRefId=%s", session.OrderID, initData.PaymentReferenceID))

	return &payment.Checkout{
		RedirectURL: completeResp.CallBackURL,
		ProviderRef: initData.PaymentReferenceID,
	}, nil
}

// Confirm verifies the payment by reference id. Success requires Nagad's own
// indicators: statusCode "000" or a status/message containing "success".
func (c *Client) Confirm(ctx context.Context, providerRef string) (*payment.ProviderResult, error) {
	cfg, err := c.Settings.Nagad(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/verify/payment/%s", c.baseURL(cfg.Env), providerRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.ErrUpstream("nagad: failed to build verify request", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, models.ErrUpstream("nagad: verify request failed", err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.ErrUpstream("nagad: failed to read verify response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, models.ErrUpstream(fmt.Sprintf("nagad: verify HTTP %d: %s", resp.StatusCode, string(payloadBytes)), nil)
	}

	var verified verifyResponse
	if err := json.Unmarshal(payloadBytes, &verified); err != nil {
		return nil, models.ErrUpstream("nagad: failed to decode verify response", err)
	}

	raw := map[string]interface{}{}
	_ = json.Unmarshal(payloadBytes, &raw)

	success := verified.StatusCode == statusCodeSuccess ||
		strings.Contains(strings.ToLower(verified.Status), "success") ||
		strings.Contains(strings.ToLower(verified.Message), "success")

	c.Logger.LogPayment("nagad", "VERIFY", fmt.Sprintf("paymentRefId=%s statusCode=%s status=%s", providerRef, verified.StatusCode, verified.Status))

	return &payment.ProviderResult{
		Success:       success,
		Reference:     providerRef,
		TransactionID: verified.IssuerPaymentRefNo,
		Raw:           raw,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-KM-Api-Version", apiVersion)
	req.Header.Set("X-KM-IP-V4", "127.0.0.1")
	req.Header.Set("X-KM-Client-Type", "PC_WEB")
}

// post sends a JSON body and treats HTTP >= 400 as a hard failure.
func (c *Client) post(ctx context.Context, url string, body map[string]string) (*gatewayResponse, map[string]interface{}, error) {
	encoded, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, nil, models.ErrUpstream("nagad: failed to build request", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, nil, models.ErrUpstream("nagad: request failed", err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, models.ErrUpstream("nagad: failed to read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, nil, models.ErrUpstream(fmt.Sprintf("nagad: HTTP %d: %s", resp.StatusCode, string(payloadBytes)), nil)
	}

	var decoded gatewayResponse
	if err := json.Unmarshal(payloadBytes, &decoded); err != nil {
		return nil, nil, models.ErrUpstream("nagad: failed to decode response", err)
	}

	raw := map[string]interface{}{}
	_ = json.Unmarshal(payloadBytes, &raw)
	return &decoded, raw, nil
}
