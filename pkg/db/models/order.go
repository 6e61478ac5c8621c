package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/pkg/enums"
	"github.com/linyuhan/shophub-backend/pkg/types"
)

// Order is immutable after creation except for Status and UpdatedAt.
// Orders are created only by the checkout transaction, never directly.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string                `gorm:"column:order_number;not null;uniqueIndex:idx_orders_order_number"`
	BuyerID         uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;index"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Status          enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;serializer:json;not null"`
	Notes           *string               `gorm:"column:notes"`
	Items           []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
