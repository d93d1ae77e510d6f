package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/order_service/services/order/internal/domain"
	"github.com/Skotchmaster/order_service/services/order/internal/models"
)

type CreateOrderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	// Price is accepted for compatibility with older clients and never read.
	Price json.RawMessage `json:"price,omitempty"`
}

type CreateOrderRequest struct {
	Items []CreateOrderItem `json:"items"`
}

type ListOrdersQuery struct {
	Page   int
	Limit  int
	Status *domain.OrderStatus
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type OrderItemResponse struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type OrderResponse struct {
	ID               uuid.UUID           `json:"id"`
	Status           domain.OrderStatus  `json:"status"`
	TotalAmount      decimal.Decimal     `json:"totalAmount"`
	TotalItems       int                 `json:"totalItems"`
	Paid             bool                `json:"paid"`
	PaidAt           *time.Time          `json:"paidAt"`
	PaymentReference *string             `json:"paymentReference"`
	ReceiptURL       *string             `json:"receiptUrl,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	Items            []OrderItemResponse `json:"items,omitempty"`
}

type PageMeta struct {
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	Total    int64 `json:"total"`
	LastPage int   `json:"lastPage"`
}

type OrdersPage struct {
	Data []OrderResponse `json:"data"`
	Meta PageMeta        `json:"meta"`
}

// NewOrderResponse copies o; names may be nil, in which case items carry no name.
func NewOrderResponse(o *models.Order, names map[int64]string) OrderResponse {
	resp := OrderResponse{
		ID:               o.ID,
		Status:           o.Status,
		TotalAmount:      o.TotalAmount,
		TotalItems:       o.TotalItems,
		Paid:             o.Paid,
		PaidAt:           o.PaidAt,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.Receipt != nil {
		url := o.Receipt.ReceiptURL
		resp.ReceiptURL = &url
	}
	if len(o.Items) > 0 {
		resp.Items = make([]OrderItemResponse, 0, len(o.Items))
		for _, it := range o.Items {
			resp.Items = append(resp.Items, OrderItemResponse{
				ProductID: it.ProductID,
				Name:      names[it.ProductID],
				Price:     it.Price,
				Quantity:  it.Quantity,
			})
		}
	}
	return resp
}
