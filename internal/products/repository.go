package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
)

// Repository defines persistence operations for product listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Save(ctx context.Context, product *models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context, filter ListFilter) ([]models.Product, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error)
}

// ListFilter narrows the public catalog listing.
type ListFilter struct {
	Category *enums.ProductCategory
	Query    string
	Limit    int
	Offset   int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a products repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) Save(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindForUpdate loads the product holding its row lock for the duration of
// the surrounding transaction. The sqlite driver has no FOR UPDATE; its
// single-writer lock covers the same guarantee in tests.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	qb := r.db.WithContext(ctx)
	if qb.Dialector.Name() != "sqlite" {
		qb = qb.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var product models.Product
	if err := qb.First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListActive(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	qb := r.db.WithContext(ctx).
		Where("status = ?", enums.ProductStatusActive).
		Where("is_deleted = ?", false)

	if filter.Category != nil {
		qb = qb.Where("category = ?", *filter.Category)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		qb = qb.Where("name LIKE ?", pattern)
	}
	if filter.Limit > 0 {
		qb = qb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		qb = qb.Offset(filter.Offset)
	}

	var rows []models.Product
	err := qb.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND is_deleted = ?", sellerID, false).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
