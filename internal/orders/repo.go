package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	ExistsByNumber(ctx context.Context, orderNumber string) (bool, error)
	FindByIDAndBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// ExistsByNumber reports whether any order already carries the number.
func (r *repository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByIDAndBuyer loads an order scoped to its owner with items preloaded.
func (r *repository) FindByIDAndBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ? AND buyer_id = ?", orderID, buyerID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) ([]models.Order, error) {
	qb := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("buyer_id = ?", buyerID)

	if params.Status != nil {
		qb = qb.Where("status = ?", *params.Status)
	}
	if params.Limit > 0 {
		qb = qb.Limit(params.Limit)
	}
	if params.Offset > 0 {
		qb = qb.Offset(params.Offset)
	}

	var rows []models.Order
	err := qb.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}
