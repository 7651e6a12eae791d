package service

import (
	"context"
	"testing"

	"alltrade/internal/models"
	"alltrade/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserService(t *testing.T, db *gorm.DB) *UserService {
	t.Helper()
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, nil)
	return NewUserService(
		repository.NewUserRepository(db),
		repository.NewFollowRepository(db),
		notifications,
	)
}

func TestUserService_ToggleFollow(t *testing.T) {
	db := setupTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	action, err := svc.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ActionFollowed, action)

	var target models.User
	require.NoError(t, db.First(&target, bob.ID).Error)
	assert.Equal(t, 1, target.FollowersCount)

	// The target is notified about the new follower.
	var notif models.Notification
	require.NoError(t, db.Where("user_id = ?", bob.ID).First(&notif).Error)
	assert.Equal(t, models.NotificationTypeFollow, notif.Type)
	assert.Contains(t, notif.Title, "alice")

	action, err = svc.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ActionUnfollowed, action)

	require.NoError(t, db.First(&target, bob.ID).Error)
	assert.Equal(t, 0, target.FollowersCount)

	// Unfollowing does not notify.
	var notifCount int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", bob.ID).Count(&notifCount).Error)
	assert.Equal(t, int64(1), notifCount)
}

func TestUserService_ToggleFollow_Self(t *testing.T) {
	db := setupTestDB(t)
	svc := newUserService(t, db)

	alice := seedUser(t, db, "alice")

	_, err := svc.ToggleFollow(context.Background(), alice.ID, alice.ID)
	assert.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", err.(*models.AppError).Code)
}

func TestUserService_GetProfile(t *testing.T) {
	db := setupTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	seedProduct(t, db, bob.ID, "Vintage lamp", 5000)

	_, err := svc.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	profile, err := svc.GetProfile(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsFollowing)
	assert.Len(t, profile.Products, 1)

	// Viewing your own profile never reports following.
	own, err := svc.GetProfile(ctx, bob.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, own.IsFollowing)
}

func TestUserService_GetProfile_Disabled(t *testing.T) {
	db := setupTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	bob := seedUser(t, db, "bob")
	require.NoError(t, svc.SetDisabled(ctx, bob.ID, true))

	_, err := svc.GetProfile(ctx, bob.ID, 0)
	assert.Error(t, err)
	assert.Equal(t, "NOT_FOUND", err.(*models.AppError).Code)
}

func TestUserService_SearchUsers(t *testing.T) {
	db := setupTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	seedUser(t, db, "bobby")
	carol := seedUser(t, db, "bobcat")

	_, err := svc.ToggleFollow(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	results, err := svc.SearchUsers(ctx, alice.ID, "bob", 20, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	followed := map[string]bool{}
	for _, u := range results {
		followed[u.Username] = u.IsFollowing
	}
	assert.True(t, followed["bobcat"])
	assert.False(t, followed["bobby"])

	t.Run("Empty query", func(t *testing.T) {
		_, err := svc.SearchUsers(ctx, alice.ID, "", 20, 0)
		assert.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", err.(*models.AppError).Code)
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	db := setupTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")

	updated, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		UserID:   alice.ID,
		Bio:      "Selling vintage furniture",
		Location: "Lagos",
	})
	require.NoError(t, err)
	assert.Equal(t, "Selling vintage furniture", updated.Bio)
	assert.Equal(t, "Lagos", updated.Location)
	assert.Equal(t, "alice", updated.Username)

	t.Run("Bio too long", func(t *testing.T) {
		long := make([]byte, 501)
		for i := range long {
			long[i] = 'x'
		}
		_, err := svc.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Bio: string(long)})
		assert.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", err.(*models.AppError).Code)
	})
}

func TestUserService_AdminOps(t *testing.T) {
	db := setupTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	bob := seedUser(t, db, "bob")

	promoted, err := svc.SetAdmin(ctx, bob.ID, true)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)

	require.NoError(t, svc.SetDisabled(ctx, bob.ID, true))
	var stored models.User
	require.NoError(t, db.First(&stored, bob.ID).Error)
	assert.True(t, stored.IsDisabled)

	require.NoError(t, svc.SetDisabled(ctx, bob.ID, false))
	require.NoError(t, db.First(&stored, bob.ID).Error)
	assert.False(t, stored.IsDisabled)
}
