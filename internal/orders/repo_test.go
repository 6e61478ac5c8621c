package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/linyuhan/shophub-backend/pkg/db/models"
	"github.com/linyuhan/shophub-backend/pkg/enums"
)

func seedOrder(t *testing.T, conn *gorm.DB, buyerID uuid.UUID, number string, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:     number,
		BuyerID:         buyerID,
		TotalAmount:     decimal.RequireFromString("100.00"),
		Status:          status,
		ShippingAddress: validAddress(),
		Items: []models.OrderItem{
			{ProductName: "Shirt", ProductPrice: decimal.RequireFromString("50.00"), Quantity: 2, TotalPrice: decimal.RequireFromString("100.00")},
		},
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func TestRepositoryExistsByNumber(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seedOrder(t, conn, uuid.New(), "ORD-20250601-AAA111", enums.OrderStatusPending)

	exists, err := repo.ExistsByNumber(ctx, "ORD-20250601-AAA111")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByNumber(ctx, "ORD-20250601-ZZZ999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepositoryFindByIDAndBuyerScopesOwner(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	buyerID := uuid.New()

	order := seedOrder(t, conn, buyerID, "ORD-20250601-BBB222", enums.OrderStatusPending)

	found, err := repo.FindByIDAndBuyer(ctx, order.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, found.OrderNumber)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Shirt", found.Items[0].ProductName)

	_, err = repo.FindByIDAndBuyer(ctx, order.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListByBuyerFiltersAndOrders(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	buyerID := uuid.New()

	older := seedOrder(t, conn, buyerID, "ORD-20250601-CCC333", enums.OrderStatusPending)
	newer := seedOrder(t, conn, buyerID, "ORD-20250601-DDD444", enums.OrderStatusCancelled)
	seedOrder(t, conn, uuid.New(), "ORD-20250601-EEE555", enums.OrderStatusPending)

	forceCreatedAt(t, conn, older.ID, time.Now().Add(-time.Hour))
	forceCreatedAt(t, conn, newer.ID, time.Now())

	rows, err := repo.ListByBuyer(ctx, buyerID, ListParams{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.OrderNumber, rows[0].OrderNumber)
	assert.Equal(t, older.OrderNumber, rows[1].OrderNumber)

	status := enums.OrderStatusCancelled.String()
	rows, err = repo.ListByBuyer(ctx, buyerID, ListParams{Status: &status})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, newer.OrderNumber, rows[0].OrderNumber)

	rows, err = repo.ListByBuyer(ctx, buyerID, ListParams{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, older.OrderNumber, rows[0].OrderNumber)
}

func TestRepositoryUpdateStatus(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	buyerID := uuid.New()

	order := seedOrder(t, conn, buyerID, "ORD-20250601-FFF666", enums.OrderStatusPending)
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled))

	found, err := repo.FindByIDAndBuyer(ctx, order.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, found.Status)
}
