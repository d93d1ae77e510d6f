package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/order_service/services/order/internal/domain"
)

type Order struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey"                     json:"id"`
	TotalAmount      decimal.Decimal    `gorm:"type:numeric(12,2);not null"              json:"totalAmount"`
	TotalItems       int                `gorm:"not null"                                 json:"totalItems"`
	Status           domain.OrderStatus `gorm:"type:varchar(16);not null;index"          json:"status"`
	Paid             bool               `gorm:"not null;default:false"                   json:"paid"`
	PaidAt           *time.Time         `json:"paidAt"`
	PaymentReference *string            `gorm:"type:varchar(255)"                        json:"paymentReference"`
	CreatedAt        time.Time          `gorm:"not null;index"                           json:"createdAt"`
	UpdatedAt        time.Time          `gorm:"not null"                                 json:"updatedAt"`
	Items            []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Receipt          *OrderReceipt      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"receipt,omitempty"`
}

// OrderItem price is a snapshot of the catalog price at creation time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"    json:"orderId"`
	ProductID int64           `gorm:"not null"                    json:"productId"`
	Quantity  int             `gorm:"not null;check:quantity>0"   json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

type OrderReceipt struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"            json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"  json:"orderId"`
	ReceiptURL string    `gorm:"type:text;not null"              json:"receiptUrl"`
	CreatedAt  time.Time `gorm:"not null"                        json:"createdAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (r *OrderReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (Order) TableName() string { return "orders" }

func (OrderItem) TableName() string { return "order_items" }

func (OrderReceipt) TableName() string { return "order_receipts" }

// ProductIDs returns the distinct product ids of the order in first-seen order.
func (o *Order) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(o.Items))
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
