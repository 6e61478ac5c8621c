package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linyuhan/shophub-backend/pkg/db/models"
)

// Warning codes surfaced to the client alongside a successful mutation.
const (
	WarningStockAdjusted = "STOCK_ADJUSTED"
	WarningLowStock      = "LOW_STOCK"
)

const lowStockThreshold = 10

// AddItemInput carries the fields accepted when adding a product to the cart.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemInput carries the new quantity for an existing cart item.
type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// Warning flags a quantity adjustment or low-stock condition on a mutation.
type Warning struct {
	Code      string    `json:"code"`
	ProductID uuid.UUID `json:"product_id"`
	Message   string    `json:"message"`
}

// ItemDTO is one cart line with its live product context.
type ItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Quantity      int             `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Available     bool            `json:"available"`
}

// CartDTO is the buyer's cart with computed totals.
type CartDTO struct {
	ID       uuid.UUID       `json:"id"`
	Items    []ItemDTO       `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Warnings []Warning       `json:"warnings,omitempty"`
}

func toCartDTO(record *models.Cart, warnings []Warning) *CartDTO {
	dto := &CartDTO{
		ID:       record.ID,
		Items:    make([]ItemDTO, 0, len(record.Items)),
		Total:    decimal.Zero,
		Warnings: warnings,
	}
	for i := range record.Items {
		item := &record.Items[i]
		line := ItemDTO{
			ID:            item.ID,
			ProductID:     item.ProductID,
			PriceSnapshot: item.PriceSnapshot,
			Quantity:      item.Quantity,
			Subtotal:      item.PriceSnapshot.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.CurrentPrice = item.Product.Price
			line.Available = item.Product.Purchasable() && item.Product.Stock >= item.Quantity
		}
		dto.Items = append(dto.Items, line)
		dto.Total = dto.Total.Add(line.Subtotal)
	}
	return dto
}
