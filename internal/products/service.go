package products

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/pkg/db"
	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
	pkgerrors "github.com/linyuhan/shophub-backend/pkg/errors"
)

const slugCreateAttempts = 3

// Service exposes catalog management for sellers and catalog reads for buyers.
type Service interface {
	Create(ctx context.Context, sellerID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, sellerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, sellerID, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, filter ListFilter) ([]ProductDTO, error)
	ListMine(ctx context.Context, sellerID uuid.UUID) ([]ProductDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds the products service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, sellerID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}

	price, err := parsePrice(input.Price)
	if err != nil {
		return nil, err
	}
	category, err := enums.ParseProductCategory(input.Category)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	product := &models.Product{
		SellerID:    sellerID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       price,
		Stock:       input.Stock,
		Status:      enums.ProductStatusDraft,
		Category:    category,
		ImageURLs:   input.ImageURLs,
	}

	// Slug collisions across sellers are possible for common names; retry
	// with a fresh suffix before giving up.
	for attempt := 0; attempt < slugCreateAttempts; attempt++ {
		product.Slug = slugify(product.Name)
		created, err := s.repo.Create(ctx, product)
		if err == nil {
			return ptrDTO(created), nil
		}
		if !db.IsUniqueViolation(err, "idx_products_slug") {
			return nil, err
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique product slug")
}

func (s *service) Update(ctx context.Context, sellerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		price, err := parsePrice(*input.Price)
		if err != nil {
			return nil, err
		}
		product.Price = price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		product.Stock = *input.Stock
	}
	if input.Status != nil {
		status, err := enums.ParseProductStatus(*input.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		product.Status = status
	}
	if input.Category != nil {
		category, err := enums.ParseProductCategory(*input.Category)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		product.Category = category
	}
	if input.ImageURLs != nil {
		product.ImageURLs = *input.ImageURLs
	}

	saved, err := s.repo.Save(ctx, product)
	if err != nil {
		return nil, err
	}
	return ptrDTO(saved), nil
}

// Delete soft-deletes the listing. The row stays so order history keeps its
// foreign key; the product simply stops being purchasable.
func (s *service) Delete(ctx context.Context, sellerID, productID uuid.UUID) error {
	product, err := s.loadOwned(ctx, sellerID, productID)
	if err != nil {
		return err
	}
	product.IsDeleted = true
	product.Status = enums.ProductStatusInactive
	_, err = s.repo.Save(ctx, product)
	return err
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productNotFound(productID)
		}
		return nil, err
	}
	if product.IsDeleted {
		return nil, productNotFound(productID)
	}
	return ptrDTO(product), nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]ProductDTO, error) {
	rows, err := s.repo.ListActive(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toProductDTOs(rows), nil
}

func (s *service) ListMine(ctx context.Context, sellerID uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return toProductDTOs(rows), nil
}

func (s *service) loadOwned(ctx context.Context, sellerID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productNotFound(productID)
		}
		return nil, err
	}
	if product.IsDeleted {
		return nil, productNotFound(productID)
	}
	if product.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another seller")
	}
	return product, nil
}

func productNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
		WithDetails(map[string]any{"product_id": id})
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid price")
	}
	if price.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return price.Round(2), nil
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	base := strings.ToLower(strings.TrimSpace(name))
	base = slugStripRe.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	suffix := uuid.NewString()[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func ptrDTO(product *models.Product) *ProductDTO {
	dto := toProductDTO(product)
	return &dto
}
