package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/types"
)

// CreateOrderInput carries the checkout request body.
type CreateOrderInput struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
	Notes           *string               `json:"notes" validate:"omitempty,max=500"`
}

// ListParams narrows the buyer's order listing.
type ListParams struct {
	Status *string `json:"status"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ItemDTO is one frozen order line.
type ItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    *uuid.UUID      `json:"product_id,omitempty"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

// OrderDTO is the public projection of an order.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"order_number"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	Status          string                `json:"status"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Notes           *string               `json:"notes,omitempty"`
	Items           []ItemDTO             `json:"items"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func toOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		TotalAmount:     order.TotalAmount,
		Status:          order.Status.String(),
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		Items:           make([]ItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for i := range order.Items {
		item := &order.Items[i]
		dto.Items = append(dto.Items, ItemDTO{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductPrice: item.ProductPrice,
			Quantity:     item.Quantity,
			TotalPrice:   item.TotalPrice,
		})
	}
	return dto
}

func toOrderDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toOrderDTO(&rows[i]))
	}
	return out
}
