package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/pkg/enums"
)

// Product is the seller's canonical listing. Stock never goes below zero:
// every decrement happens inside a transaction holding this row's
// exclusive lock and re-checks the counter first. IsDeleted and Status are
// independent purchasability predicates; both are checked at every read
// boundary that feeds a cart or an order.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Name        string              `gorm:"column:name;not null"`
	Slug        string              `gorm:"column:slug;not null;uniqueIndex"`
	Description string              `gorm:"column:description"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	Stock       int                 `gorm:"column:stock;not null;default:0"`
	Status      enums.ProductStatus `gorm:"column:status;not null;default:'draft'"`
	Category    enums.ProductCategory `gorm:"column:category;not null"`
	ImageURLs   []string            `gorm:"column:image_urls;serializer:json"`
	IsDeleted   bool                `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Purchasable reports whether the product can currently be bought.
func (p *Product) Purchasable() bool {
	return p != nil && !p.IsDeleted && p.Status == enums.ProductStatusActive
}
