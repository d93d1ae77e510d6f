package paymentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/order_service/pkg/rpcclient"
)

const createSessionPath = "/payments/create-payment-session"

type Item struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// MarshalJSON sends price as a JSON number, which is what the gateway expects.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string      `json:"name"`
		Price    json.Number `json:"price"`
		Quantity int         `json:"quantity"`
	}{
		Name:     i.Name,
		Price:    json.Number(i.Price.String()),
		Quantity: i.Quantity,
	})
}

type SessionRequest struct {
	OrderID  string `json:"orderId"`
	Currency string `json:"currency"`
	Items    []Item `json:"items"`
}

type Session struct {
	URL        string `json:"url"`
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}

type Client struct {
	rpc *rpcclient.Client
}

func NewClient(paymentsServiceURL string, timeout time.Duration, opts ...rpcclient.Option) *Client {
	return &Client{rpc: rpcclient.New("payments", paymentsServiceURL, timeout, opts...)}
}

func (c *Client) CreatePaymentSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var session Session
	if err := c.rpc.PostJSON(ctx, createSessionPath, req, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf("%w: payments: session for order %s has no url", rpcclient.ErrRemote, req.OrderID)
	}
	return &session, nil
}
