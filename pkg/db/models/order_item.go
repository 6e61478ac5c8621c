package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is a frozen snapshot of a product at purchase time. It is
// never re-synced with the live product; historical orders must not change
// when the seller edits the listing. ProductID is nullable so deleting a
// product can never cascade into order history.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ProductName  string          `gorm:"column:product_name;not null"`
	ProductPrice decimal.Decimal `gorm:"column:product_price;type:numeric(10,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	TotalPrice   decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
