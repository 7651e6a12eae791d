package repository

import (
	"context"
	"testing"

	"alltrade/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	buyer := &models.User{Username: "orderbuyer", Email: "ob@example.com"}
	seller := &models.User{Username: "orderseller", Email: "os@example.com"}
	db.Create(buyer)
	db.Create(seller)

	product := &models.Product{SellerID: seller.ID, Title: "Desk", Price: 80000, IsVisible: true}
	db.Create(product)

	t.Run("Create and GetByID", func(t *testing.T) {
		order := &models.Order{
			BuyerID:          buyer.ID,
			ProductID:        product.ID,
			Amount:           85000,
			DeliveryFee:      5000,
			PaymentReference: "AT-ord-1",
		}
		require.NoError(t, repo.Create(ctx, order))
		assert.NotZero(t, order.ID)

		fetched, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPending, fetched.Status)
		assert.Equal(t, "Desk", fetched.Product.Title)
	})

	t.Run("Create duplicate reference", func(t *testing.T) {
		dup := &models.Order{
			BuyerID:          buyer.ID,
			ProductID:        product.ID,
			Amount:           85000,
			PaymentReference: "AT-ord-1",
		}
		err := repo.Create(ctx, dup)
		assert.Error(t, err)
	})

	t.Run("GetByReference", func(t *testing.T) {
		order, err := repo.GetByReference(ctx, "AT-ord-1")
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, int64(85000), order.Amount)

		order, err = repo.GetByReference(ctx, "AT-nope")
		require.NoError(t, err)
		assert.Nil(t, order)
	})

	t.Run("ListByBuyer and ListBySeller", func(t *testing.T) {
		orders, err := repo.ListByBuyer(ctx, buyer.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, orders, 1)

		orders, err = repo.ListBySeller(ctx, seller.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, orders, 1)

		orders, err = repo.ListBySeller(ctx, buyer.ID, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		order, err := repo.GetByReference(ctx, "AT-ord-1")
		require.NoError(t, err)

		require.NoError(t, repo.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted))

		fetched, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, fetched.Status)

		err = repo.UpdateStatus(ctx, 99999, models.OrderStatusCanceled)
		assert.Error(t, err)
	})
}
