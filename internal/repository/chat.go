package repository

import (
	"context"
	"errors"
	"time"

	"alltrade/internal/cache"
	"alltrade/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	GetUserConversations(ctx context.Context, userID uint) ([]*models.Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, userID uint) error
	RemoveParticipant(ctx context.Context, conversationID, userID uint) error
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	AppendMessage(ctx context.Context, message *models.Message) error
	GetMessages(ctx context.Context, conversationID uint, limit, offset int) ([]*models.Message, error)
	MarkMessageRead(ctx context.Context, messageID, readerID uint) (*models.Message, error)
	UpdateLastRead(ctx context.Context, conversationID, userID uint) error
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := readDB(r.db).WithContext(ctx).
		Preload("Participants").
		First(&conversation, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Conversation", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &conversation, nil
}

func (r *chatRepository) GetUserConversations(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := readDB(r.db).WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Select("conversations.*, COALESCE(cp.unread_count, 0) as unread_count").
		Preload("Participants").
		Order("conversations.updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return conversations, nil
}

// FindDirectConversation locates the conversation whose participant set is
// exactly {userA, userB}. Returns (nil, nil) when no such conversation exists,
// so callers can distinguish "create one" from a real failure.
func (r *chatRepository) FindDirectConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := readDB(r.db).WithContext(ctx).
		Joins("JOIN conversation_participants cp_self ON cp_self.conversation_id = conversations.id AND cp_self.user_id = ?", userA).
		Joins("JOIN conversation_participants cp_other ON cp_other.conversation_id = conversations.id AND cp_other.user_id = ?", userB).
		Where("NOT EXISTS (SELECT 1 FROM conversation_participants cp_extra WHERE cp_extra.conversation_id = conversations.id AND cp_extra.user_id NOT IN (?, ?))", userA, userB).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conversation, nil
}

func (r *chatRepository) AddParticipant(ctx context.Context, conversationID, userID uint) error {
	participant := models.ConversationParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		LastReadAt:     time.Now(),
	}
	// Use OnConflict to silently ignore duplicate key errors
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&participant).Error
}

func (r *chatRepository) RemoveParticipant(ctx context.Context, conversationID, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.ConversationParticipant{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateConversation(ctx, conversationID)
	return nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// AppendMessage stores the message and refreshes the conversation summary in
// one transaction. The recipient's unread counter moves in the same commit, so
// a crash never leaves the summary disagreeing with the message log.
func (r *chatRepository) AppendMessage(ctx context.Context, message *models.Message) error {
	summary := message.Text
	if summary == "" && message.ImageURL != "" {
		summary = "[image]"
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Updates(map[string]any{
				"last_message_text": summary,
				"updated_at":        time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id <> ?", message.ConversationID, message.SenderID).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}

	cache.InvalidateConversation(ctx, message.ConversationID)
	return nil
}

func (r *chatRepository) GetMessages(ctx context.Context, conversationID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	err := readDB(r.db).WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Preload("Sender").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// Reverse messages to return them in chronological order (oldest -> newest)
	// We fetched DESC to get the *latest* messages, but clients expect ASC
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkMessageRead flags a message as read by its recipient. Marking an
// already-read message again is a no-op and returns the current row.
func (r *chatRepository) MarkMessageRead(ctx context.Context, messageID, readerID uint) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", messageID)
		}
		return nil, models.NewInternalError(err)
	}

	if message.SenderID == readerID {
		return nil, models.NewValidationError("Cannot mark your own message as read")
	}
	ok, err := r.IsParticipant(ctx, message.ConversationID, readerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("Not a participant in this conversation")
	}
	if message.IsRead {
		return &message, nil
	}

	now := time.Now()
	if err := r.db.WithContext(ctx).Model(&message).
		Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	message.IsRead = true
	message.ReadAt = &now

	cache.Invalidate(ctx, cache.MessageHistoryKey(message.ConversationID))
	return &message, nil
}

// UpdateLastRead resets the caller's unread counter for the conversation.
func (r *chatRepository) UpdateLastRead(ctx context.Context, conversationID, userID uint) error {
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]any{
			"last_read_at": time.Now(),
			"unread_count": 0,
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
