package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linyuhan/shophub-backend/pkg/db/models"
)

// CreateProductInput carries the fields accepted when a seller lists a product.
type CreateProductInput struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=2000"`
	Price       string   `json:"price" validate:"required"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Category    string   `json:"category" validate:"required"`
	ImageURLs   []string `json:"image_urls" validate:"max=10,dive,url"`
}

// UpdateProductInput carries optional updates to a listing. Nil fields are
// left untouched.
type UpdateProductInput struct {
	Name        *string   `json:"name" validate:"omitempty,max=100"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Price       *string   `json:"price"`
	Stock       *int      `json:"stock" validate:"omitempty,gte=0"`
	Status      *string   `json:"status"`
	Category    *string   `json:"category"`
	ImageURLs   *[]string `json:"image_urls" validate:"omitempty,max=10,dive,url"`
}

// ProductDTO is the public projection of a product.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	SellerID    uuid.UUID       `json:"seller_id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      string          `json:"status"`
	Category    string          `json:"category"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toProductDTO(product *models.Product) ProductDTO {
	return ProductDTO{
		ID:          product.ID,
		SellerID:    product.SellerID,
		Name:        product.Name,
		Slug:        product.Slug,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		Status:      product.Status.String(),
		Category:    product.Category.String(),
		ImageURLs:   product.ImageURLs,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

func toProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toProductDTO(&rows[i]))
	}
	return out
}
