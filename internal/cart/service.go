package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/internal/products"
	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
	pkgerrors "github.com/linyuhan/shophub-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the buyer's cart operations.
type Service interface {
	Get(ctx context.Context, buyerID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, buyerID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, buyerID, itemID uuid.UUID, input UpdateItemInput) (*CartDTO, error)
	RemoveItem(ctx context.Context, buyerID, itemID uuid.UUID) (*CartDTO, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	productRepo products.Repository
}

// NewService builds the cart service.
func NewService(tx txRunner, repo Repository, productRepo products.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{tx: tx, repo: repo, productRepo: productRepo}, nil
}

func (s *service) Get(ctx context.Context, buyerID uuid.UUID) (*CartDTO, error) {
	record, err := s.repo.FindByBuyerWithItems(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, cerr := s.repo.FindOrCreateByBuyer(ctx, buyerID)
			if cerr != nil {
				return nil, cerr
			}
			return toCartDTO(created, nil), nil
		}
		return nil, err
	}
	return toCartDTO(record, nil), nil
}

// AddItem puts a product in the cart, capturing its current price as the
// snapshot the buyer will pay at checkout. Quantities above available
// stock are clamped with a warning rather than rejected.
func (s *service) AddItem(ctx context.Context, buyerID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var warnings []Warning
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)

		product, err := loadPurchasable(ctx, productRepo, input.ProductID)
		if err != nil {
			return err
		}

		record, err := repo.FindOrCreateByBuyer(ctx, buyerID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItem(ctx, record.ID, product.ID)
		switch {
		case err == nil:
			target := existing.Quantity + input.Quantity
			target, warnings = clampQuantity(product, target, warnings)
			existing.Quantity = target
			existing.PriceSnapshot = product.Price
			_, err = repo.SaveItem(ctx, existing)
			return err
		case errors.Is(err, gorm.ErrRecordNotFound):
			target, adjusted := clampQuantity(product, input.Quantity, warnings)
			warnings = adjusted
			_, err = repo.CreateItem(ctx, &models.CartItem{
				CartID:        record.ID,
				ProductID:     product.ID,
				Quantity:      target,
				PriceSnapshot: product.Price,
			})
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, buyerID, warnings)
}

func (s *service) UpdateItem(ctx context.Context, buyerID, itemID uuid.UUID, input UpdateItemInput) (*CartDTO, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var warnings []Warning
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)

		record, err := s.requireCart(ctx, repo, buyerID)
		if err != nil {
			return err
		}
		item, err := repo.FindItemByID(ctx, record.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return err
		}
		product, err := loadPurchasable(ctx, productRepo, item.ProductID)
		if err != nil {
			return err
		}

		target, adjusted := clampQuantity(product, input.Quantity, warnings)
		warnings = adjusted
		item.Quantity = target
		_, err = repo.SaveItem(ctx, item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, buyerID, warnings)
}

func (s *service) RemoveItem(ctx context.Context, buyerID, itemID uuid.UUID) (*CartDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := s.requireCart(ctx, repo, buyerID)
		if err != nil {
			return err
		}
		if _, err := repo.FindItemByID(ctx, record.ID, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return err
		}
		return repo.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, buyerID, nil)
}

func (s *service) requireCart(ctx context.Context, repo Repository, buyerID uuid.UUID) (*models.Cart, error) {
	record, err := repo.FindOrCreateByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) reload(ctx context.Context, buyerID uuid.UUID, warnings []Warning) (*CartDTO, error) {
	record, err := s.repo.FindByBuyerWithItems(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return toCartDTO(record, warnings), nil
}

func loadPurchasable(ctx context.Context, repo products.Repository, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID})
		}
		return nil, err
	}
	// A soft-deleted product reads the same as a missing one.
	if product.IsDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	if product.Status != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available").
			WithDetails(map[string]any{"product_id": productID, "status": product.Status.String()})
	}
	if product.Stock <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "product is out of stock").
			WithDetails(map[string]any{"product_id": productID, "available": 0})
	}
	return product, nil
}

// clampQuantity caps the requested quantity at available stock and appends
// the matching warnings.
func clampQuantity(product *models.Product, requested int, warnings []Warning) (int, []Warning) {
	quantity := requested
	if quantity > product.Stock {
		quantity = product.Stock
		warnings = append(warnings, Warning{
			Code:      WarningStockAdjusted,
			ProductID: product.ID,
			Message:   fmt.Sprintf("quantity reduced to available stock (%d)", product.Stock),
		})
	}
	if product.Stock <= lowStockThreshold {
		warnings = append(warnings, Warning{
			Code:      WarningLowStock,
			ProductID: product.ID,
			Message:   fmt.Sprintf("only %d left in stock", product.Stock),
		})
	}
	return quantity, warnings
}
