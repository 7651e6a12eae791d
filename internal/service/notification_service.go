// Package service provides application business logic (chat, orders, wallet, users).
package service

import (
	"context"
	"encoding/json"

	"alltrade/internal/middleware"
	"alltrade/internal/models"
	"alltrade/internal/notifications"
	"alltrade/internal/push"
	"alltrade/internal/repository"
)

// NotificationService persists notifications and delivers them over the
// realtime and web push channels. Delivery is best effort on both channels;
// only the database write can fail the operation.
type NotificationService struct {
	repo     repository.NotificationRepository
	notifier *notifications.Notifier
	push     *push.Dispatcher
}

// NotifyInput describes a notification to record and deliver.
type NotifyInput struct {
	UserID uint
	Title  string
	Body   string
	Type   models.NotificationType
	Meta   map[string]any
}

// NewNotificationService returns a new NotificationService. notifier and
// dispatcher may be nil, in which case only the database write happens.
func NewNotificationService(
	repo repository.NotificationRepository,
	notifier *notifications.Notifier,
	dispatcher *push.Dispatcher,
) *NotificationService {
	return &NotificationService{repo: repo, notifier: notifier, push: dispatcher}
}

// Notify stores the notification, emits it to the user's realtime channel and
// queues web push delivery in the background.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if in.Title == "" {
		return nil, models.NewValidationError("Notification title is required")
	}
	if in.Type == "" {
		in.Type = models.NotificationTypeSystem
	}

	var meta json.RawMessage
	if in.Meta != nil {
		raw, err := json.Marshal(in.Meta)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		meta = raw
	}

	notification := &models.Notification{
		UserID: in.UserID,
		Title:  in.Title,
		Body:   in.Body,
		Type:   in.Type,
		Meta:   meta,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		payload, err := json.Marshal(map[string]any{
			"type":    "notification",
			"payload": notification,
		})
		if err == nil {
			if err := s.notifier.PublishUser(ctx, in.UserID, string(payload)); err != nil {
				middleware.Logger.Warn("notification realtime publish failed",
					"user_id", in.UserID, "error", err)
			}
		}
	}

	if s.push != nil {
		// Detached from the request lifecycle so a slow push service never
		// delays the caller.
		go s.push.Dispatch(context.WithoutCancel(ctx), notification)
	}

	return notification, nil
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// UnreadCount returns how many notifications the user has not read yet.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead clears the user's unread badge.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, userID uint) error {
	return s.repo.Delete(ctx, id, userID)
}

// Subscribe registers a browser push endpoint for the user.
func (s *NotificationService) Subscribe(ctx context.Context, userID uint, endpoint, p256dh, auth string) error {
	if endpoint == "" || p256dh == "" || auth == "" {
		return models.NewValidationError("Subscription endpoint and keys are required")
	}
	return s.repo.SaveSubscription(ctx, &models.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   p256dh,
		Auth:     auth,
	})
}

// Unsubscribe removes a browser push endpoint.
func (s *NotificationService) Unsubscribe(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return models.NewValidationError("Subscription endpoint is required")
	}
	return s.repo.DeleteSubscription(ctx, endpoint)
}
