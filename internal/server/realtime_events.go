package server

import (
	"context"
	"encoding/json"

	"alltrade/internal/middleware"
	"alltrade/internal/models"
)

// Event type constants prevent typos in event names.
const (
	eventProductCreated      = "product_created"
	eventProductUpdated      = "product_updated"
	eventProductDeleted      = "product_deleted"
	eventCommentCreated      = "comment_created"
	eventCommentDeleted      = "comment_deleted"
	eventOrderPlaced         = "order_placed"
	eventOrderCompleted      = "order_completed"
	eventOrderCanceled       = "order_canceled"
	eventFollowerAdded       = "follower_added"
	eventPresenceChanged     = "presence_changed"
	eventWalletCredited      = "wallet_credited"
	eventNotificationCreated = "notification_created"
)

// publishUserEvent fans an event out to a single user over the local hub and
// the Redis user channel so other instances can deliver it too.
func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload map[string]interface{}) {
	event := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		middleware.Logger.Error("failed to marshal event", "event", eventType, "error", err)
		return
	}
	message := string(eventJSON)
	if s.hub != nil {
		s.hub.Broadcast(userID, message)
	}
	if s.notifier != nil {
		if err := s.notifier.PublishUser(ctx, userID, message); err != nil {
			middleware.Logger.Error("failed to publish user event",
				"event", eventType, "user_id", userID, "error", err)
		}
	}
}

// publishBroadcastEvent fans an event out to every connected user.
func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	event := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		middleware.Logger.Error("failed to marshal event", "event", eventType, "error", err)
		return
	}
	message := string(eventJSON)
	if s.hub != nil {
		s.hub.BroadcastAll(message)
	}
	if s.notifier != nil {
		if err := s.notifier.PublishBroadcast(ctx, message); err != nil {
			middleware.Logger.Error("failed to publish broadcast event",
				"event", eventType, "error", err)
		}
	}
}

func userSummary(user models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"avatar":   user.Avatar,
	}
}

func productSummary(product models.Product) map[string]interface{} {
	return map[string]interface{}{
		"id":       product.ID,
		"title":    product.Title,
		"price":    product.Price,
		"category": product.Category,
	}
}
