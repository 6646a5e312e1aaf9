/**
 * @description
 * This package provides a client for the hosted-checkout payment gateway.
 * It covers the calls the lease engine needs: initializing a checkout form,
 * retrieving a checkout or payment result, and refunding a paid item.
 * Requests are JSON bodies signed with HMAC-SHA256 using the merchant secret.
 */
package gatewayclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway payment statuses.
const (
	PaymentStatusSuccess   = "SUCCESS"
	PaymentStatusFailure   = "FAILURE"
	PaymentStatusCancelled = "CANCELLED"
	PaymentStatusVoid      = "VOID"
	PaymentStatusInit3DS   = "INIT_THREEDS"
)

const statusSuccess = "success"

// Client is a client for the payment gateway API.
type Client struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new gateway client.
func NewClient(baseURL, apiKey, secretKey string) *Client {
	return &Client{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		APIKey:    apiKey,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Buyer identifies the paying party on a checkout.
type Buyer struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Email          string `json:"email"`
	GSMNumber      string `json:"gsmNumber,omitempty"`
	IdentityNumber string `json:"identityNumber,omitempty"`
}

// BasketItem is a single line on the checkout basket.
type BasketItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category1"`
	ItemType string `json:"itemType"`
	Price    string `json:"price"`
}

// CheckoutRequest initializes a hosted checkout form.
type CheckoutRequest struct {
	Locale         string       `json:"locale"`
	ConversationID string       `json:"conversationId"`
	Price          string       `json:"price"`
	PaidPrice      string       `json:"paidPrice"`
	Currency       string       `json:"currency"`
	BasketID       string       `json:"basketId"`
	PaymentGroup   string       `json:"paymentGroup"`
	CallbackURL    string       `json:"callbackUrl"`
	Buyer          Buyer        `json:"buyer"`
	BasketItems    []BasketItem `json:"basketItems"`
}

// CheckoutResponse is returned when a checkout form is initialized.
type CheckoutResponse struct {
	Status              string `json:"status"`
	Token               string `json:"token"`
	CheckoutFormContent string `json:"checkoutFormContent"`
	PaymentPageURL      string `json:"paymentPageUrl"`
	TokenExpireTime     int    `json:"tokenExpireTime"`
}

// CheckoutResult is the outcome of a checkout form, looked up by token.
type CheckoutResult struct {
	Status         string `json:"status"`
	Token          string `json:"token"`
	PaymentID      string `json:"paymentId"`
	PaymentStatus  string `json:"paymentStatus"`
	PaidPrice      string `json:"paidPrice"`
	ConversationID string `json:"conversationId"`
}

// PaymentItem is a paid basket line that can be refunded on its own.
type PaymentItem struct {
	ItemID               string `json:"itemId"`
	PaymentTransactionID string `json:"paymentTransactionId"`
	PaidPrice            string `json:"paidPrice"`
}

// Payment is a payment looked up by gateway payment id.
type Payment struct {
	Status         string        `json:"status"`
	PaymentID      string        `json:"paymentId"`
	PaymentStatus  string        `json:"paymentStatus"`
	Price          string        `json:"price"`
	PaidPrice      string        `json:"paidPrice"`
	ConversationID string        `json:"conversationId"`
	Items          []PaymentItem `json:"itemTransactions"`
}

// RefundRequest refunds one paid basket item.
type RefundRequest struct {
	ConversationID       string `json:"conversationId"`
	PaymentTransactionID string `json:"paymentTransactionId"`
	Price                string `json:"price"`
	Currency             string `json:"currency"`
}

// RefundResponse is returned for an accepted refund.
type RefundResponse struct {
	Status               string `json:"status"`
	PaymentID            string `json:"paymentId"`
	PaymentTransactionID string `json:"paymentTransactionId"`
	Price                string `json:"price"`
}

// ErrorResponse represents an error from the gateway API.
type ErrorResponse struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	HTTPStatus   int    `json:"-"`
}

func (e *ErrorResponse) Error() string {
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("payment gateway error %s", e.ErrorCode)
	}
	return fmt.Sprintf("payment gateway returned status %d", e.HTTPStatus)
}

// CreateCheckout initializes a hosted checkout form.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	var resp CheckoutResponse
	if err := c.do(ctx, "/v1/checkout/initialize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetrieveCheckout resolves the payment behind a checkout token.
func (c *Client) RetrieveCheckout(ctx context.Context, token string) (*CheckoutResult, error) {
	payload := map[string]string{"token": token}
	var resp CheckoutResult
	if err := c.do(ctx, "/v1/checkout/retrieve", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetrievePayment looks up a payment and its item transactions.
func (c *Client) RetrievePayment(ctx context.Context, paymentID string) (*Payment, error) {
	payload := map[string]string{"paymentId": paymentID}
	var resp Payment
	if err := c.do(ctx, "/v1/payments/retrieve", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refund refunds a single payment item transaction.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	var resp RefundResponse
	if err := c.do(ctx, "/v1/refunds", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}

	nonce := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("X-Random-Key", nonce)
	req.Header.Set("X-Signature", Sign(c.SecretKey, nonce, path, body))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute gateway request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	var envelope ErrorResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &envelope); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	if resp.StatusCode >= 300 || envelope.Status != statusSuccess {
		envelope.HTTPStatus = resp.StatusCode
		return &envelope
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

// Sign computes the request signature over nonce, path and body.
func Sign(secret, nonce, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	mac.Write([]byte(path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// FormatAmount renders an amount in minor units as the gateway's decimal string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// ParseAmount converts a gateway decimal string into minor units.
func ParseAmount(value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid gateway amount %q: %w", value, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
