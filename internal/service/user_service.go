package service

import (
	"context"

	"alltrade/internal/middleware"
	"alltrade/internal/models"
	"alltrade/internal/repository"
)

// UserService provides profile, search and follow business logic.
type UserService struct {
	userRepo      repository.UserRepository
	followRepo    repository.FollowRepository
	notifications *NotificationService
}

// UpdateProfileInput is the input for profile updates.
type UpdateProfileInput struct {
	UserID   uint
	Username string
	Bio      string
	Avatar   string
	Location string
}

// NewUserService returns a new UserService. notifications may be nil.
func NewUserService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	notifications *NotificationService,
) *UserService {
	return &UserService{
		userRepo:      userRepo,
		followRepo:    followRepo,
		notifications: notifications,
	}
}

// GetUserByID returns the bare user record.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile returns a user with their recent listings. When viewerID is
// non-zero the IsFollowing flag is filled in for the viewer.
func (s *UserService) GetProfile(ctx context.Context, userID, viewerID uint) (*models.User, error) {
	user, err := s.userRepo.GetByIDWithProducts(ctx, userID, 12)
	if err != nil {
		return nil, err
	}
	if user.IsDisabled {
		return nil, models.NewNotFoundError("User", userID)
	}
	if viewerID != 0 && viewerID != userID {
		following, err := s.followRepo.IsFollowing(ctx, viewerID, userID)
		if err != nil {
			return nil, err
		}
		user.IsFollowing = following
	}
	return user, nil
}

// ListUsers returns a page of users.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.userRepo.List(ctx, limit, offset)
}

// SearchUsers finds enabled accounts by username or email fragment, marking
// which results the viewer already follows.
func (s *UserService) SearchUsers(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.User, error) {
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	users, err := s.userRepo.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}

	if viewerID != 0 && len(users) > 0 {
		ids := make([]uint, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		followed, err := s.followRepo.FollowingIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		for i := range users {
			users[i].IsFollowing = followed[users[i].ID]
		}
	}
	return users, nil
}

// UpdateProfile applies profile changes for the caller.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const maxBioLen = 500
	const maxUsernameLen = 30

	if in.Username != "" {
		if len(in.Username) > maxUsernameLen {
			return nil, models.NewValidationError("Username too long (max 30 characters)")
		}
		user.Username = in.Username
	}
	if in.Bio != "" {
		if len(in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = in.Bio
	}
	if in.Avatar != "" {
		user.Avatar = in.Avatar
	}
	if in.Location != "" {
		user.Location = in.Location
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ToggleFollow follows or unfollows the target, returning the resulting
// action. A new follow notifies the target.
func (s *UserService) ToggleFollow(ctx context.Context, followerID, targetID uint) (repository.FollowAction, error) {
	if followerID == targetID {
		return "", models.NewValidationError("You cannot follow yourself")
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if target.IsDisabled {
		return "", models.NewNotFoundError("User", targetID)
	}

	action, err := s.followRepo.Toggle(ctx, followerID, targetID)
	if err != nil {
		return "", err
	}

	if action == repository.ActionFollowed && s.notifications != nil {
		followerName := "Someone"
		if follower, err := s.userRepo.GetByID(ctx, followerID); err == nil {
			followerName = follower.Username
		}
		if _, err := s.notifications.Notify(ctx, NotifyInput{
			UserID: targetID,
			Title:  followerName + " started following you",
			Type:   models.NotificationTypeFollow,
			Meta:   map[string]any{"follower_id": followerID},
		}); err != nil {
			middleware.Logger.Warn("follow notification failed",
				"target_id", targetID, "error", err)
		}
	}
	return action, nil
}

// ListFollowers returns users following the target.
func (s *UserService) ListFollowers(ctx context.Context, targetID uint, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.followRepo.ListFollowers(ctx, targetID, limit, offset)
}

// ListFollowing returns users the given user follows.
func (s *UserService) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.followRepo.ListFollowing(ctx, userID, limit, offset)
}

// SetAdmin grants or revokes admin rights.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetDisabled disables or re-enables an account.
func (s *UserService) SetDisabled(ctx context.Context, targetID uint, disabled bool) error {
	return s.userRepo.SetDisabled(ctx, targetID, disabled)
}
