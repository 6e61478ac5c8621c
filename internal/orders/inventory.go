package orders

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/internal/products"
	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
	pkgerrors "github.com/linyuhan/shophub-backend/pkg/errors"
)

// ReservationRequest asks for qty units of one product.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// ReleaseRequest returns qty units of one product.
type ReleaseRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// ReserveStock decrements product stock inside the caller's transaction.
// Rows are locked in ascending product-id order so concurrent checkouts
// sharing products cannot deadlock. Stock is re-read under the lock; the
// pre-transaction availability check is advisory only.
func ReserveStock(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "reserve stock requires a transaction")
	}

	merged := map[uuid.UUID]int{}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
		merged[req.ProductID] += req.Qty
	}

	productRepo := products.NewRepository(tx)
	for _, productID := range sortedIDs(merged) {
		qty := merged[productID]

		product, err := productRepo.FindForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
					WithDetails(map[string]any{"product_id": productID})
			}
			return err
		}
		// A soft-deleted product reads the same as a missing one.
		if product.IsDeleted {
			return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID})
		}
		if product.Status != enums.ProductStatusActive {
			return pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available").
				WithDetails(map[string]any{"product_id": productID, "status": product.Status.String()})
		}
		if product.Stock < qty {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": productID,
					"product":    product.Name,
					"requested":  qty,
					"available":  product.Stock,
				})
		}

		if err := tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", productID).
			Update("stock", gorm.Expr("stock - ?", qty)).Error; err != nil {
			return err
		}
	}
	return nil
}

// ReleaseStock returns units to product rows inside the caller's
// transaction. Products deleted since the order was placed are skipped;
// a cancellation must not fail because a listing disappeared.
func ReleaseStock(ctx context.Context, tx *gorm.DB, requests []ReleaseRequest) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "release stock requires a transaction")
	}

	merged := map[uuid.UUID]int{}
	for _, req := range requests {
		if req.ProductID == uuid.Nil || req.Qty <= 0 {
			continue
		}
		merged[req.ProductID] += req.Qty
	}

	released := 0
	productRepo := products.NewRepository(tx)
	for _, productID := range sortedIDs(merged) {
		qty := merged[productID]

		if _, err := productRepo.FindForUpdate(ctx, productID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return released, err
		}

		if err := tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", productID).
			Update("stock", gorm.Expr("stock + ?", qty)).Error; err != nil {
			return released, err
		}
		released += qty
	}
	return released, nil
}

func sortedIDs(merged map[uuid.UUID]int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}
