package repository

import (
	"context"
	"errors"

	"alltrade/internal/cache"
	"alltrade/internal/models"

	"gorm.io/gorm"
)

// FollowAction reports what a toggle call ended up doing.
type FollowAction string

const (
	// ActionFollowed means a new follow edge was created.
	ActionFollowed FollowAction = "followed"
	// ActionUnfollowed means an existing follow edge was removed.
	ActionUnfollowed FollowAction = "unfollowed"
)

// FollowRepository defines persistence operations for follow edges.
type FollowRepository interface {
	Toggle(ctx context.Context, followerID, targetID uint) (FollowAction, error)
	IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error)
	FollowingIDs(ctx context.Context, followerID uint, targetIDs []uint) (map[uint]bool, error)
	ListFollowers(ctx context.Context, targetID uint, limit, offset int) ([]models.User, error)
	ListFollowing(ctx context.Context, followerID uint, limit, offset int) ([]models.User, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Toggle creates or removes the follow edge and adjusts both users' counters
// in a single transaction, so the counters never drift from the edges.
func (r *followRepository) Toggle(ctx context.Context, followerID, targetID uint) (FollowAction, error) {
	var action FollowAction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Follow
		findErr := tx.Where("follower_id = ? AND target_id = ?", followerID, targetID).
			First(&existing).Error

		switch {
		case findErr == nil:
			if err := tx.Where("follower_id = ? AND target_id = ?", followerID, targetID).
				Delete(&models.Follow{}).Error; err != nil {
				return err
			}
			if err := adjustFollowCounters(tx, followerID, targetID, -1); err != nil {
				return err
			}
			action = ActionUnfollowed
			return nil
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.Follow{FollowerID: followerID, TargetID: targetID}).Error; err != nil {
				return err
			}
			if err := adjustFollowCounters(tx, followerID, targetID, 1); err != nil {
				return err
			}
			action = ActionFollowed
			return nil
		default:
			return findErr
		}
	})
	if err != nil {
		return "", models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, followerID)
	cache.InvalidateUser(ctx, targetID)
	return action, nil
}

// adjustFollowCounters floors counters at zero with a CASE expression so the
// same SQL works on both PostgreSQL and the SQLite test database.
func adjustFollowCounters(tx *gorm.DB, followerID, targetID uint, delta int) error {
	if err := tx.Model(&models.User{}).Where("id = ?", followerID).
		Update("following_count", gorm.Expr(
			"CASE WHEN following_count + ? < 0 THEN 0 ELSE following_count + ? END", delta, delta)).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", targetID).
		Update("followers_count", gorm.Expr(
			"CASE WHEN followers_count + ? < 0 THEN 0 ELSE followers_count + ? END", delta, delta)).Error
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND target_id = ?", followerID, targetID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, followerID uint, targetIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}
	var ids []uint
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND target_id IN ?", followerID, targetIDs).
		Pluck("target_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, targetID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := readDB(r.db).WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.target_id = ?", targetID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) ListFollowing(ctx context.Context, followerID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := readDB(r.db).WithContext(ctx).
		Joins("JOIN follows ON follows.target_id = users.id").
		Where("follows.follower_id = ?", followerID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
