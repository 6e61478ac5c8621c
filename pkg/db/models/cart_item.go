package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem is one buyer/product/quantity tuple awaiting checkout.
// PriceSnapshot is captured when the product is added to the cart and is
// what the buyer pays at checkout, regardless of later catalog price
// changes.
type CartItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID        uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity      int             `gorm:"column:quantity;not null;default:1"`
	PriceSnapshot decimal.Decimal `gorm:"column:price_snapshot;type:numeric(10,2);not null"`
	Product       *Product        `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
