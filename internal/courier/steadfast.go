package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/order"
	"storefront/internal/settings"
)

const steadfastBaseURL = "https://portal.packzy.com/api/v1"

// Steadfast books delivery consignments with the Steadfast courier API.
// Credentials live in the settings store so operators can rotate them without
// a redeploy.
type Steadfast struct {
	Settings settings.Store
	HTTP     *http.Client
	Log      *logger.Logger

	// BaseURL overrides the production endpoint in tests.
	BaseURL string
}

func NewSteadfast(store settings.Store, log *logger.Logger) *Steadfast {
	return &Steadfast{
		Settings: store,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Log:      log,
	}
}

type createOrderRequest struct {
	Invoice          string  `json:"invoice"`
	RecipientName    string  `json:"recipient_name"`
	RecipientPhone   string  `json:"recipient_phone"`
	RecipientAddress string  `json:"recipient_address"`
	CODAmount        float64 `json:"cod_amount"`
	Note             string  `json:"note,omitempty"`
}

type createOrderResponse struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Consignment struct {
		ConsignmentID json.Number `json:"consignment_id"`
		InvoiceNumber string      `json:"invoice"`
		TrackingCode  string      `json:"tracking_code"`
		Status        string      `json:"status"`
	} `json:"consignment"`
}

// CreateConsignment books a delivery for a shipped order. COD orders carry
// the amount to collect; prepaid orders ship with zero collection.
func (s *Steadfast) CreateConsignment(ctx context.Context, o *models.Order) (*order.Consignment, error) {
	cfg, err := s.Settings.Steadfast(ctx)
	if err != nil {
		return nil, err
	}

	codAmount := 0.0
	if o.PaymentMethod == models.MethodCOD {
		codAmount = o.TotalAmount
	}

	payload := createOrderRequest{
		Invoice:          fmt.Sprintf("%d", o.ID),
		RecipientName:    o.CustomerName,
		RecipientPhone:   o.CustomerPhone,
		RecipientAddress: o.ShippingAddress,
		CODAmount:        codAmount,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	base := s.BaseURL
	if base == "" {
		base = steadfastBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/create_order", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", cfg.APIKey)
	req.Header.Set("Secret-Key", cfg.SecretKey)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, models.ErrUpstream("courier request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, models.ErrUpstream(fmt.Sprintf("courier returned HTTP %d", resp.StatusCode), nil)
	}

	var decoded createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, models.ErrUpstream("courier returned malformed response", err)
	}
	if decoded.Status != http.StatusOK {
		return nil, models.ErrUpstream(fmt.Sprintf("courier rejected consignment: %s", decoded.Message), nil)
	}

	s.Log.Info("COURIER", fmt.Sprintf("Consignment %s booked for order %d", decoded.Consignment.ConsignmentID.String(), o.ID))

	return &order.Consignment{
		ConsignmentID: decoded.Consignment.ConsignmentID.String(),
		TrackingCode:  decoded.Consignment.TrackingCode,
	}, nil
}
