package service

import (
	"context"

	"alltrade/internal/middleware"
	"alltrade/internal/models"
	"alltrade/internal/repository"
)

// CommentService provides comment and review business logic.
type CommentService struct {
	commentRepo   repository.CommentRepository
	productRepo   repository.ProductRepository
	notifications *NotificationService
	isAdmin       func(ctx context.Context, userID uint) (bool, error)
}

// CreateCommentInput is the input for posting a comment or review.
type CreateCommentInput struct {
	UserID    uint
	ProductID uint
	Content   string
	Rating    *int
}

// NewCommentService returns a new CommentService.
func NewCommentService(
	commentRepo repository.CommentRepository,
	productRepo repository.ProductRepository,
	notifications *NotificationService,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		commentRepo:   commentRepo,
		productRepo:   productRepo,
		notifications: notifications,
		isAdmin:       isAdmin,
	}
}

const maxCommentLen = 2000

// CreateComment posts a comment on a listing and notifies the seller.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	product, err := s.productRepo.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 2000 characters)")
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}

	comment := &models.Comment{
		Content:   in.Content,
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Rating:    in.Rating,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if s.notifications != nil && product.SellerID != in.UserID {
		if _, err := s.notifications.Notify(ctx, NotifyInput{
			UserID: product.SellerID,
			Title:  "New comment on " + product.Title,
			Body:   in.Content,
			Type:   models.NotificationTypeComment,
			Meta:   map[string]any{"product_id": product.ID, "comment_id": comment.ID},
		}); err != nil {
			middleware.Logger.Warn("comment notification failed",
				"seller_id", product.SellerID, "error", err)
		}
	}

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// ListComments returns comments for a listing, newest first.
func (s *CommentService) ListComments(ctx context.Context, productID uint, limit, offset int) ([]*models.Comment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByProduct(ctx, productID, limit, offset)
}

// DeleteComment removes a comment (author or admin).
func (s *CommentService) DeleteComment(ctx context.Context, commentID, userID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	if comment.UserID != userID {
		if s.isAdmin == nil {
			return nil, models.NewForbiddenError("You can only delete your own comments")
		}
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, models.NewForbiddenError("You can only delete your own comments")
		}
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return nil, err
	}
	return comment, nil
}
