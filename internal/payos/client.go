// Package payos is a minimal client for the PayOS payment gateway: payment
// link creation and webhook signature verification.
package payos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dentistez/clinic-api/pkg/logging"
)

// ErrGateway wraps any failure talking to PayOS so handlers can map it to 502.
var ErrGateway = errors.New("payos: gateway error")

// LinkRequest describes one checkout link.
type LinkRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

// Link is the checkout data returned by PayOS.
type Link struct {
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	PaymentLinkID string `json:"paymentLinkId"`
}

// LinkCreator is the gateway surface payment services depend on.
type LinkCreator interface {
	CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error)
}

// Client talks to the PayOS merchant API.
type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	returnURL   string
	cancelURL   string
	http        *http.Client
	logger      *logging.Logger
}

// Config holds the merchant credentials.
type Config struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
}

// NewClient creates a PayOS client.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		returnURL:   cfg.ReturnURL,
		cancelURL:   cfg.CancelURL,
		http:        &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

// ReturnURL exposes the configured merchant return URL.
func (c *Client) ReturnURL() string { return c.returnURL }

// CancelURL exposes the configured merchant cancel URL.
func (c *Client) CancelURL() string { return c.cancelURL }

type linkResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data *Link  `json:"data"`
}

// CreatePaymentLink requests a hosted checkout link. The request is signed
// with HMAC-SHA256 over the alphabetically ordered field string PayOS expects.
func (c *Client) CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error) {
	if req.ReturnURL == "" {
		req.ReturnURL = c.returnURL
	}
	if req.CancelURL == "" {
		req.CancelURL = c.cancelURL
	}
	req.Signature = c.signLink(req)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("payos: marshal link request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payos: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("payos link creation rejected",
			"status", resp.StatusCode, "body", string(raw))
		return nil, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var parsed linkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if parsed.Code != "00" || parsed.Data == nil {
		c.logger.Error("payos link creation failed",
			"code", parsed.Code, "desc", parsed.Desc)
		return nil, fmt.Errorf("%w: code %s (%s)", ErrGateway, parsed.Code, parsed.Desc)
	}
	return parsed.Data, nil
}

// signLink computes the PayOS create-link signature:
// HMAC-SHA256 over "amount=&cancelUrl=&description=&orderCode=&returnUrl=".
func (c *Client) signLink(req LinkRequest) string {
	payload := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		req.Amount, req.CancelURL, req.Description, req.OrderCode, req.ReturnURL)
	return hmacHex(c.checksumKey, payload)
}

// VerifyWebhook checks the webhook signature against the data object. PayOS
// signs the sorted key=value join of the data fields. An empty checksum key
// disables verification, for local development.
func (c *Client) VerifyWebhook(data map[string]any, signature string) bool {
	if c.checksumKey == "" {
		return true
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(data[k])))
	}
	expected := hmacHex(c.checksumKey, strings.Join(parts, "&"))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		// Webhook numbers arrive as float64 unless decoded with UseNumber.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func hmacHex(key, payload string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
