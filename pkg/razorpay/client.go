// Package razorpay is a minimal REST client for the pieces of the Razorpay
// API this service uses: orders, payment links and order status. Network and
// gateway-side failures surface as ErrGatewayUnavailable so callers never
// mistake an unreachable gateway for a failed payment.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Order statuses reported by GET /v1/orders/:id.
const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// Gateway is what the reconciliation engine talks to. *Client implements it;
// tests substitute a fake.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes Notes) (string, error)
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]OrderPayment, error)
}

type Order struct {
	ID         string            `json:"id"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	NotesRaw   map[string]string `json:"notes"`
}

type OrderPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"` // created, authorized, captured, refunded, failed
	Method string `json:"method"`
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type PaymentLinkRequest struct {
	Amount      int64
	Currency    string
	Description string
	Customer    Customer
	Notes       Notes
	CallbackURL string
}

type PaymentLink struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewClient(keyID, keySecret string) *Client {
	return &Client{
		baseURL:   "https://api.razorpay.com",
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateOrder creates a gateway order with payment auto-capture enabled and
// returns its id. The notes round-trip verbatim: they are the only channel
// that carries user/plan context back on a stateless webhook.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes Notes) (string, error) {
	body := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"notes":           notes.ToMap(),
		"payment_capture": 1,
	}
	var out Order
	if err := c.post(ctx, "/v1/orders", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("razorpay: order response missing id")
	}
	return out.ID, nil
}

func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	body := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"accept_partial":  false,
		"description":     req.Description,
		"customer":        req.Customer,
		"notify":          map[string]bool{"email": true, "sms": true},
		"reminder_enable": true,
		"notes":           req.Notes.ToMap(),
		"callback_url":    req.CallbackURL,
		"callback_method": "get",
	}
	var out PaymentLink
	if err := c.post(ctx, "/v1/payment_links", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	if err := c.get(ctx, "/v1/orders/"+orderID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchOrderPayments lists payment attempts against an order; used to
// recover the gateway payment id on the poll path, where the caller only
// knows the order id.
func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]OrderPayment, error) {
	var out struct {
		Items []OrderPayment `json:"items"`
	}
	if err := c.get(ctx, "/v1/orders/"+orderID+"/payments", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.SetBasicAuth(c.keyID, c.keySecret)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		log.Printf("[RAZORPAY] %s %s -> %d %s", req.Method, req.URL.Path, resp.StatusCode, string(respBody))
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("razorpay: %s %s: %d %s", req.Method, req.URL.Path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
