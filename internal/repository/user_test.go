package repository

import (
	"context"
	"testing"

	"alltrade/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Create and GetByID", func(t *testing.T) {
		user := &models.User{Username: "alice", Email: "alice@example.com", Password: "hash"}
		require.NoError(t, repo.Create(ctx, user))
		assert.NotZero(t, user.ID)

		fetched, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", fetched.Username)
	})

	t.Run("Create duplicate username", func(t *testing.T) {
		user := &models.User{Username: "bob", Email: "bob@example.com"}
		require.NoError(t, repo.Create(ctx, user))

		dup := &models.User{Username: "bob", Email: "other@example.com"}
		err := repo.Create(ctx, dup)
		require.Error(t, err)

		appErr, ok := err.(*models.AppError)
		require.True(t, ok)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	})

	t.Run("GetByID not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 99999)
		require.Error(t, err)
		appErr, ok := err.(*models.AppError)
		require.True(t, ok)
		assert.Equal(t, "NOT_FOUND", appErr.Code)
	})

	t.Run("GetByEmail missing returns nil nil", func(t *testing.T) {
		user, err := repo.GetByEmail(ctx, "ghost@example.com")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("GetByUsername", func(t *testing.T) {
		fetched, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, fetched)
		assert.Equal(t, "alice@example.com", fetched.Email)
	})

	t.Run("GetByIDWithProducts only visible listings", func(t *testing.T) {
		seller := &models.User{Username: "seller", Email: "seller@example.com"}
		require.NoError(t, repo.Create(ctx, seller))

		db.Create(&models.Product{SellerID: seller.ID, Title: "Visible", Price: 100, IsVisible: true})
		db.Create(&models.Product{SellerID: seller.ID, Title: "Hidden", Price: 100, IsVisible: false})

		fetched, err := repo.GetByIDWithProducts(ctx, seller.ID, 10)
		require.NoError(t, err)
		require.Len(t, fetched.Products, 1)
		assert.Equal(t, "Visible", fetched.Products[0].Title)
	})

	t.Run("Search skips disabled accounts", func(t *testing.T) {
		active := &models.User{Username: "searchme", Email: "searchme@example.com"}
		disabled := &models.User{Username: "searchme2", Email: "searchme2@example.com", IsDisabled: true}
		require.NoError(t, repo.Create(ctx, active))
		require.NoError(t, repo.Create(ctx, disabled))

		users, err := repo.Search(ctx, "searchme", 10, 0)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "searchme", users[0].Username)
	})

	t.Run("SetDisabled", func(t *testing.T) {
		user := &models.User{Username: "todisable", Email: "todisable@example.com"}
		require.NoError(t, repo.Create(ctx, user))

		require.NoError(t, repo.SetDisabled(ctx, user.ID, true))

		var check models.User
		require.NoError(t, db.First(&check, user.ID).Error)
		assert.True(t, check.IsDisabled)

		err := repo.SetDisabled(ctx, 99999, true)
		assert.Error(t, err)
	})

	t.Run("Delete is soft", func(t *testing.T) {
		user := &models.User{Username: "gone", Email: "gone@example.com"}
		require.NoError(t, repo.Create(ctx, user))
		require.NoError(t, repo.Delete(ctx, user.ID))

		_, err := repo.GetByID(ctx, user.ID)
		assert.Error(t, err)

		var count int64
		db.Unscoped().Model(&models.User{}).Where("id = ?", user.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}
