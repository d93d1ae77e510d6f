package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/order_service/services/order/internal/domain"
	"github.com/Skotchmaster/order_service/services/order/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStaleStatus means the row no longer had the status the caller observed.
	ErrStaleStatus = errors.New("order status changed concurrently")
	ErrNotPayable  = errors.New("order is not in a payable status")
)

type GormRepo struct {
	DB *gorm.DB
}

type ListFilter struct {
	Status *domain.OrderStatus
}

func (f ListFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	return q
}

// CreateOrderWithItems writes the order and all of its items in one transaction.
func (r *GormRepo) CreateOrderWithItems(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}
		return tx.Create(&order.Items).Error
	})
}

func (r *GormRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id ASC, id ASC") }).
		Preload("Receipt").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, filter ListFilter, offset, limit int) ([]models.Order, int64, error) {
	var total int64
	if err := filter.apply(r.DB.WithContext(ctx).Model(&models.Order{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]models.Order, 0, limit)
	if err := filter.apply(r.DB.WithContext(ctx).Model(&models.Order{})).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus is a compare-and-set on the status the caller last saw.
func (r *GormRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrStale(r.DB.WithContext(ctx), id, ErrStaleStatus)
	}
	return nil
}

// MarkPaid moves a payable order to PAID and stores its receipt atomically.
// It returns ErrNotPayable when the order exists but is not PENDING or CONFIRMED.
func (r *GormRepo) MarkPaid(ctx context.Context, id uuid.UUID, reference, receiptURL string, paidAt time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", id, []domain.OrderStatus{domain.StatusPending, domain.StatusConfirmed}).
			Updates(map[string]any{
				"status":            domain.StatusPaid,
				"paid":              true,
				"paid_at":           paidAt,
				"payment_reference": reference,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOrStale(tx, id, ErrNotPayable)
		}

		receipt := models.OrderReceipt{OrderID: id, ReceiptURL: receiptURL}
		return tx.Create(&receipt).Error
	})
}

func missingOrStale(db *gorm.DB, id uuid.UUID, stale error) error {
	var n int64
	if err := db.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return stale
}

func (r *GormRepo) CountReceipts(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.OrderReceipt{}).Where("order_id = ?", orderID).Count(&n).Error
	return n, err
}
