package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/internal/cart"
	"github.com/linyuhan/shophub-backend/pkg/config"
	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
	pkgerrors "github.com/linyuhan/shophub-backend/pkg/errors"
	"github.com/linyuhan/shophub-backend/pkg/logger"
	"github.com/linyuhan/shophub-backend/pkg/metrics"
	"github.com/linyuhan/shophub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service executes order placement, cancellation, and buyer reads.
type Service interface {
	CreateFromCart(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, buyerID uuid.UUID, params ListParams) ([]OrderDTO, error)
	Get(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	cartRepo cart.Repository
	cfg      config.OrderConfig
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	now      func() time.Time
	generate func(time.Time) (string, error)
}

// NewService builds the orders service. metrics and logg may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	cartRepo cart.Repository,
	cfg config.OrderConfig,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if cfg.NumberRetries <= 0 {
		cfg.NumberRetries = 3
	}
	return &service{
		tx:       tx,
		repo:     repo,
		cartRepo: cartRepo,
		cfg:      cfg,
		metrics:  orderMetrics,
		logg:     logg,
		now:      time.Now,
		generate: GenerateOrderNumber,
	}, nil
}

// CreateFromCart turns the buyer's cart into a pending order. Validation,
// stock reservation, order insertion, and cart clearing all happen in one
// transaction; a failure at any step leaves stock and cart untouched.
func (s *service) CreateFromCart(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*OrderDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	address := input.ShippingAddress.Normalize()
	if err := address.Validate(); err != nil {
		return nil, err
	}

	started := s.now()
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)

		record, err := cartRepo.FindByBuyerWithItems(ctx, buyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
			}
			return err
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		requests := make([]ReservationRequest, 0, len(record.Items))
		for _, item := range record.Items {
			requests = append(requests, ReservationRequest{ProductID: item.ProductID, Qty: item.Quantity})
		}
		if err := ReserveStock(ctx, tx, requests); err != nil {
			return err
		}

		order, err := s.assembleOrder(buyerID, record.Items, address, input.Notes)
		if err != nil {
			return err
		}
		if err := s.allocateNumber(ctx, repo, order); err != nil {
			return err
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return err
		}

		if err := cartRepo.DeleteItems(ctx, record.ID); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, started, err)
		return nil, err
	}

	s.metrics.IncCreated()
	s.metrics.ObserveCheckout("success", s.now().Sub(started))
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, created.ID.String()), "order created")
	}

	// Reload outside the transaction so timestamps and item order come
	// straight from the database.
	reloaded, err := s.repo.FindByIDAndBuyer(ctx, created.ID, buyerID)
	if err != nil {
		return toOrderDTO(created), nil
	}
	return toOrderDTO(reloaded), nil
}

// Cancel transitions a pending order to cancelled and restores stock for
// every line whose product still exists.
func (s *service) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	var released int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDAndBuyer(ctx, orderID, buyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orderNotFound(orderID)
			}
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidOrderStatus, "only pending orders can be cancelled").
				WithDetails(map[string]any{"status": order.Status.String()})
		}

		requests := make([]ReleaseRequest, 0, len(order.Items))
		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			requests = append(requests, ReleaseRequest{ProductID: *item.ProductID, Qty: item.Quantity})
		}
		released, err = ReleaseStock(ctx, tx, requests)
		if err != nil {
			return err
		}

		return repo.UpdateStatus(ctx, orderID, enums.OrderStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCancelled()
	s.metrics.AddStockReleased(released)
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	}

	return s.Get(ctx, buyerID, orderID)
}

func (s *service) List(ctx context.Context, buyerID uuid.UUID, params ListParams) ([]OrderDTO, error) {
	if params.Status != nil {
		if _, err := enums.ParseOrderStatus(*params.Status); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, err
	}
	return toOrderDTOs(rows), nil
}

func (s *service) Get(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByIDAndBuyer(ctx, orderID, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(orderID)
		}
		return nil, err
	}
	return toOrderDTO(order), nil
}

// assembleOrder freezes cart lines into order items priced at their cart
// snapshots and totals them.
func (s *service) assembleOrder(buyerID uuid.UUID, items []models.CartItem, address types.ShippingAddress, notes *string) (*models.Order, error) {
	total := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		lineTotal := item.PriceSnapshot.Mul(decimal.NewFromInt(int64(item.Quantity)))
		productID := item.ProductID
		orderItems = append(orderItems, models.OrderItem{
			ProductID:    &productID,
			ProductName:  item.Product.Name,
			ProductPrice: item.PriceSnapshot,
			Quantity:     item.Quantity,
			TotalPrice:   lineTotal,
		})
		total = total.Add(lineTotal)
	}

	return &models.Order{
		BuyerID:         buyerID,
		TotalAmount:     total,
		Status:          enums.OrderStatusPending,
		ShippingAddress: address,
		Notes:           notes,
		Items:           orderItems,
	}, nil
}

// allocateNumber picks an order number not yet present. The unique index
// on order_number is the real guard; the existence probe keeps collisions
// from aborting the surrounding transaction.
func (s *service) allocateNumber(ctx context.Context, repo Repository, order *models.Order) error {
	for attempt := 0; attempt < s.cfg.NumberRetries; attempt++ {
		candidate, err := s.generate(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating order number")
		}
		taken, err := repo.ExistsByNumber(ctx, candidate)
		if err != nil {
			return err
		}
		if !taken {
			order.OrderNumber = candidate
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeOrderNumberExhausted, "could not allocate a unique order number")
}

func (s *service) recordFailure(ctx context.Context, started time.Time, err error) {
	code := string(pkgerrors.CodeInternal)
	if typed := pkgerrors.As(err); typed != nil {
		code = string(typed.Code())
	}
	s.metrics.IncFailure(code)
	s.metrics.ObserveCheckout("failure", s.now().Sub(started))
	if s.logg != nil && !pkgerrors.IsBusiness(err) {
		s.logg.Error(ctx, "order creation failed", err)
	}
}

func orderNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found").
		WithDetails(map[string]any{"order_id": id})
}
