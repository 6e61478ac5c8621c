package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/internal/cart"
	"github.com/linyuhan/shophub-backend/pkg/config"
	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
	pkgerrors "github.com/linyuhan/shophub-backend/pkg/errors"
	"github.com/linyuhan/shophub-backend/pkg/types"
)

type gormTxRunner struct {
	conn *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, conn *gorm.DB) *service {
	t.Helper()
	svc, err := NewService(
		gormTxRunner{conn: conn},
		NewRepository(conn),
		cart.NewRepository(conn),
		config.OrderConfig{NumberRetries: 3},
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service)
}

func validAddress() types.ShippingAddress {
	return types.ShippingAddress{
		Name:    "王小明",
		Phone:   "0912-345-678",
		Address: "台北市信義區市府路45號",
	}
}

func seedCart(t *testing.T, conn *gorm.DB, buyerID uuid.UUID, lines map[*models.Product]int) *models.Cart {
	t.Helper()
	record := &models.Cart{BuyerID: buyerID}
	if err := conn.Create(record).Error; err != nil {
		t.Fatalf("create cart: %v", err)
	}
	for product, qty := range lines {
		item := &models.CartItem{
			CartID:        record.ID,
			ProductID:     product.ID,
			Quantity:      qty,
			PriceSnapshot: product.Price,
		}
		if err := conn.Create(item).Error; err != nil {
			t.Fatalf("create cart item: %v", err)
		}
	}
	return record
}

func cartItemCount(t *testing.T, conn *gorm.DB, cartID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&count).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	return count
}

func TestCreateFromCartHappyPath(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	shirt := mustCreateProduct(t, conn, "Shirt", "150.00", 10, enums.ProductStatusActive)
	mug := mustCreateProduct(t, conn, "Mug", "49.50", 3, enums.ProductStatusActive)
	record := seedCart(t, conn, buyerID, map[*models.Product]int{shirt: 2, mug: 3})

	notes := "please gift wrap"
	order, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{
		ShippingAddress: validAddress(),
		Notes:           &notes,
	})
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}

	if order.Status != enums.OrderStatusPending.String() {
		t.Fatalf("expected pending, got %q", order.Status)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("448.50")) {
		t.Fatalf("expected total 448.50, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.Notes == nil || *order.Notes != notes {
		t.Fatalf("expected notes to survive, got %v", order.Notes)
	}

	if got := productStock(t, conn, shirt.ID); got != 8 {
		t.Fatalf("expected shirt stock 8, got %d", got)
	}
	if got := productStock(t, conn, mug.ID); got != 0 {
		t.Fatalf("expected mug stock 0, got %d", got)
	}
	if got := cartItemCount(t, conn, record.ID); got != 0 {
		t.Fatalf("expected cart cleared, %d items remain", got)
	}
}

func TestCreateFromCartSnapshotPricing(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Shoes", "100.00", 5, enums.ProductStatusActive)
	seedCart(t, conn, buyerID, map[*models.Product]int{product: 1})

	// Price hike after the item went in the cart must not affect the order.
	if err := conn.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("price", decimal.RequireFromString("500.00")).Error; err != nil {
		t.Fatalf("raise price: %v", err)
	}

	order, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected snapshot total 100.00, got %s", order.TotalAmount)
	}
	if !order.Items[0].ProductPrice.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected snapshot price 100.00, got %s", order.Items[0].ProductPrice)
	}
}

func TestCreateFromCartEmptyCart(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	// No cart at all.
	_, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("expected empty cart, got %v", err)
	}

	// A cart with zero items behaves the same.
	seedCart(t, conn, buyerID, nil)
	_, err = svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("expected empty cart, got %v", err)
	}
}

func TestCreateFromCartInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	plenty := mustCreateProduct(t, conn, "Plenty", "10.00", 50, enums.ProductStatusActive)
	scarce := mustCreateProduct(t, conn, "Scarce", "10.00", 1, enums.ProductStatusActive)
	record := seedCart(t, conn, buyerID, map[*models.Product]int{plenty: 5, scarce: 3})

	_, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// Nothing moved: stock intact, cart intact, no order rows.
	if got := productStock(t, conn, plenty.ID); got != 50 {
		t.Fatalf("expected stock 50, got %d", got)
	}
	if got := cartItemCount(t, conn, record.ID); got != 2 {
		t.Fatalf("expected cart intact, got %d items", got)
	}
	var orderCount int64
	if err := conn.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}
}

func TestCreateFromCartUnavailableProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Retired", "10.00", 5, enums.ProductStatusActive)
	seedCart(t, conn, buyerID, map[*models.Product]int{product: 1})

	// Seller pulled the listing after the buyer carted it.
	if err := conn.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("status", enums.ProductStatusInactive).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeProductUnavailable {
		t.Fatalf("expected product unavailable, got %v", err)
	}
}

func TestCreateFromCartDeletedProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Gone", "10.00", 5, enums.ProductStatusActive)
	record := seedCart(t, conn, buyerID, map[*models.Product]int{product: 1})

	// Seller deleted the listing after the buyer carted it. A soft-deleted
	// product is indistinguishable from a missing one.
	if err := conn.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("is_deleted", true).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	_, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeProductNotFound {
		t.Fatalf("expected product not found, got %v", err)
	}

	if got := productStock(t, conn, product.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
	if got := cartItemCount(t, conn, record.ID); got != 1 {
		t.Fatalf("expected cart intact, got %d items", got)
	}
}

func TestConcurrentCheckoutsDoNotOversell(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection: sqlite serializes the two transactions where
	// postgres would block on the row lock.
	sqlDB.SetMaxOpenConns(1)

	svc := newTestService(t, conn)
	ctx := context.Background()

	product := mustCreateProduct(t, conn, "Limited", "25.00", 5, enums.ProductStatusActive)

	buyers := [2]uuid.UUID{uuid.New(), uuid.New()}
	var carts [2]*models.Cart
	for i, buyerID := range buyers {
		carts[i] = seedCart(t, conn, buyerID, map[*models.Product]int{product: 3})
	}

	var wg sync.WaitGroup
	var results [2]error
	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.CreateFromCart(ctx, buyers[i], CreateOrderInput{ShippingAddress: validAddress()})
		}(i)
	}
	wg.Wait()

	var failed []int
	for i, err := range results {
		if err != nil {
			failed = append(failed, i)
		}
	}
	if len(failed) != 1 {
		t.Fatalf("expected exactly one failed checkout, got results %v", results)
	}
	if typed := pkgerrors.As(results[failed[0]]); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", results[failed[0]])
	}

	if got := productStock(t, conn, product.ID); got != 2 {
		t.Fatalf("expected stock 2 after one successful checkout, got %d", got)
	}

	for i := range buyers {
		count := cartItemCount(t, conn, carts[i].ID)
		if results[i] == nil && count != 0 {
			t.Fatalf("winning checkout left %d cart items", count)
		}
		if results[i] != nil && count != 1 {
			t.Fatalf("failed checkout should leave the cart intact, got %d items", count)
		}
	}

	var orderCount int64
	if err := conn.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected exactly one order, got %d", orderCount)
	}
}

func TestCreateFromCartInvalidAddress(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Thing", "10.00", 5, enums.ProductStatusActive)
	record := seedCart(t, conn, buyerID, map[*models.Product]int{product: 1})

	bad := validAddress()
	bad.Phone = "02-1234-5678"
	_, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: bad})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidShippingAddress {
		t.Fatalf("expected invalid shipping address, got %v", err)
	}
	if got := cartItemCount(t, conn, record.ID); got != 1 {
		t.Fatalf("expected cart untouched, got %d items", got)
	}
}

func TestCreateFromCartNumberExhaustion(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Thing", "10.00", 5, enums.ProductStatusActive)
	seedCart(t, conn, buyerID, map[*models.Product]int{product: 1})

	// Existing order claims the only number the stub will ever produce.
	taken := "ORD-20250101-AAAAAA"
	existing := &models.Order{
		OrderNumber:     taken,
		BuyerID:         uuid.New(),
		TotalAmount:     decimal.Zero,
		Status:          enums.OrderStatusPending,
		ShippingAddress: validAddress(),
	}
	if err := conn.Create(existing).Error; err != nil {
		t.Fatalf("seed existing order: %v", err)
	}
	svc.generate = func(time.Time) (string, error) {
		return taken, nil
	}

	_, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOrderNumberExhausted {
		t.Fatalf("expected order number exhausted, got %v", err)
	}
	// Reservation rolled back with the failed transaction.
	if got := productStock(t, conn, product.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Thing", "25.00", 10, enums.ProductStatusActive)
	seedCart(t, conn, buyerID, map[*models.Product]int{product: 4})

	order, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}
	if got := productStock(t, conn, product.ID); got != 6 {
		t.Fatalf("expected stock 6 after checkout, got %d", got)
	}

	cancelled, err := svc.Cancel(ctx, buyerID, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled.String() {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if got := productStock(t, conn, product.ID); got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}
}

func TestCancelSkipsDeletedProducts(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	keep := mustCreateProduct(t, conn, "Keep", "10.00", 10, enums.ProductStatusActive)
	gone := mustCreateProduct(t, conn, "Gone", "10.00", 10, enums.ProductStatusActive)
	seedCart(t, conn, buyerID, map[*models.Product]int{keep: 2, gone: 2})

	order, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}

	// Hard-delete one product; cancellation must still succeed.
	if err := conn.Unscoped().Delete(&models.Product{}, "id = ?", gone.ID).Error; err != nil {
		t.Fatalf("delete product: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, buyerID, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled.String() {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if got := productStock(t, conn, keep.ID); got != 10 {
		t.Fatalf("expected keep stock restored to 10, got %d", got)
	}
}

func TestCancelGuards(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Thing", "10.00", 10, enums.ProductStatusActive)
	seedCart(t, conn, buyerID, map[*models.Product]int{product: 1})
	order, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}

	// Another buyer must not see or cancel it.
	_, err = svc.Cancel(ctx, uuid.New(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOrderNotFound {
		t.Fatalf("expected order not found for foreign buyer, got %v", err)
	}

	// Non-pending orders cannot be cancelled.
	if err := conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", enums.OrderStatusConfirmed).Error; err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	_, err = svc.Cancel(ctx, buyerID, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidOrderStatus {
		t.Fatalf("expected invalid order status, got %v", err)
	}
	if got := productStock(t, conn, product.ID); got != 9 {
		t.Fatalf("expected stock still reserved at 9, got %d", got)
	}
}

func TestListNewestFirstAndGet(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	buyerID := uuid.New()

	product := mustCreateProduct(t, conn, "Thing", "10.00", 100, enums.ProductStatusActive)

	var orderIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		seedCart(t, conn, buyerID, map[*models.Product]int{product: 1})
		order, err := svc.CreateFromCart(ctx, buyerID, CreateOrderInput{ShippingAddress: validAddress()})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		orderIDs = append(orderIDs, order.ID)
		// created_at has second resolution under sqlite.
		forceCreatedAt(t, conn, order.ID, time.Now().Add(time.Duration(i)*time.Minute))
	}

	rows, err := svc.List(ctx, buyerID, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(rows))
	}
	if rows[0].ID != orderIDs[2] || rows[2].ID != orderIDs[0] {
		t.Fatalf("expected newest first ordering, got %v", []uuid.UUID{rows[0].ID, rows[1].ID, rows[2].ID})
	}

	got, err := svc.Get(ctx, buyerID, orderIDs[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got.Items))
	}

	_, err = svc.Get(ctx, uuid.New(), orderIDs[0])
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOrderNotFound {
		t.Fatalf("expected order not found for foreign buyer, got %v", err)
	}

	bogus := "shipped"
	if _, err := svc.List(ctx, buyerID, ListParams{Status: &bogus}); err == nil {
		t.Fatal("expected validation error for bogus status filter")
	}
}

func forceCreatedAt(t *testing.T, conn *gorm.DB, orderID uuid.UUID, ts time.Time) {
	t.Helper()
	if err := conn.Model(&models.Order{}).Where("id = ?", orderID).
		UpdateColumn("created_at", ts).Error; err != nil {
		t.Fatalf("force created_at: %v", err)
	}
}
