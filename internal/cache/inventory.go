package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix             = "user:%d"
	ProductKeyPrefix          = "product:%d"
	ProductListKey            = "products:visible"
	ConversationKeyPrefix     = "conversation:%d"
	MessageHistoryPrefix      = "conversation:%d:messages"
	UnreadNotificationsPrefix = "user:%d:unread_notifications"
)

const (
	UserTTL                = 5 * time.Minute
	ProductTTL             = 10 * time.Minute
	ProductListTTL         = time.Minute
	MessageHistoryTTL      = 2 * time.Minute
	UnreadNotificationsTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ProductKey(productID uint) string {
	return fmt.Sprintf(ProductKeyPrefix, productID)
}

func ConversationKey(conversationID uint) string {
	return fmt.Sprintf(ConversationKeyPrefix, conversationID)
}

func MessageHistoryKey(conversationID uint) string {
	return fmt.Sprintf(MessageHistoryPrefix, conversationID)
}

func UnreadNotificationsKey(userID uint) string {
	return fmt.Sprintf(UnreadNotificationsPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateProduct(ctx context.Context, productID uint) {
	Invalidate(ctx, ProductKey(productID))
	Invalidate(ctx, ProductListKey)
}

func InvalidateConversation(ctx context.Context, conversationID uint) {
	Invalidate(ctx, ConversationKey(conversationID))
	Invalidate(ctx, MessageHistoryKey(conversationID))
}

func InvalidateUnreadNotifications(ctx context.Context, userID uint) {
	Invalidate(ctx, UnreadNotificationsKey(userID))
}
