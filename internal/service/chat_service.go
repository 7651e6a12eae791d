package service

import (
	"context"
	"errors"

	"alltrade/internal/middleware"
	"alltrade/internal/models"
	"alltrade/internal/repository"
)

// ChatService provides conversation and messaging business logic. All chat
// writes flow through here so participant checks and the find-or-create
// semantics for direct conversations live in one place.
type ChatService struct {
	chatRepo      repository.ChatRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
}

// SendMessageInput is the input for sending a message. At least one of
// ConversationID or RecipientID must be set. A ConversationID takes
// precedence; when it no longer resolves and a RecipientID is present, the
// direct conversation with that user is found or created instead.
type SendMessageInput struct {
	SenderID       uint
	ConversationID uint
	RecipientID    uint
	Text           string
	ImageURL       string
}

// NewChatService returns a new ChatService. notifications may be nil.
func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
) *ChatService {
	return &ChatService{
		chatRepo:      chatRepo,
		userRepo:      userRepo,
		notifications: notifications,
	}
}

const maxMessageTextLen = 10000 // 10K characters

// SendMessage validates and persists a message, returning the stored message
// and its conversation. When RecipientID is set the direct conversation is
// found or created first, so two users always share a single DM thread.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, *models.Conversation, error) {
	if in.Text == "" && in.ImageURL == "" {
		return nil, nil, models.NewValidationError("Message text or image is required")
	}
	if len(in.Text) > maxMessageTextLen {
		return nil, nil, models.NewValidationError("Message text too long (max 10000 characters)")
	}
	if in.ConversationID == 0 && in.RecipientID == 0 {
		return nil, nil, models.NewValidationError("Provide a conversation or a recipient")
	}

	var conv *models.Conversation
	var err error
	if in.ConversationID != 0 {
		conv, err = s.chatRepo.GetConversation(ctx, in.ConversationID)
		if err != nil && in.RecipientID != 0 && isNotFoundError(err) {
			// A stale conversation id with a recipient falls back to the
			// direct-conversation path.
			conv, err = s.findOrCreateDirect(ctx, in.SenderID, in.RecipientID)
		}
		if err != nil {
			return nil, nil, err
		}
		if !isConversationParticipant(conv, in.SenderID) {
			return nil, nil, models.NewForbiddenError("You are not a participant in this conversation")
		}
	} else {
		conv, err = s.findOrCreateDirect(ctx, in.SenderID, in.RecipientID)
		if err != nil {
			return nil, nil, err
		}
	}

	message := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Text:           in.Text,
		ImageURL:       in.ImageURL,
	}
	if err := s.chatRepo.AppendMessage(ctx, message); err != nil {
		return nil, nil, err
	}

	sender, err := s.userRepo.GetByID(ctx, in.SenderID)
	if err == nil {
		message.Sender = sender
	}

	s.notifyRecipients(ctx, conv, message, sender)
	return message, conv, nil
}

// findOrCreateDirect returns the direct conversation between the two users,
// creating it with both participants when it does not exist yet.
func (s *ChatService) findOrCreateDirect(ctx context.Context, senderID, recipientID uint) (*models.Conversation, error) {
	if senderID == recipientID {
		return nil, models.NewValidationError("Cannot start a conversation with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}

	existing, err := s.chatRepo.FindDirectConversation(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.chatRepo.GetConversation(ctx, existing.ID)
	}

	conv := &models.Conversation{}
	if err := s.chatRepo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	if err := s.chatRepo.AddParticipant(ctx, conv.ID, senderID); err != nil {
		return nil, err
	}
	if err := s.chatRepo.AddParticipant(ctx, conv.ID, recipientID); err != nil {
		return nil, err
	}
	return s.chatRepo.GetConversation(ctx, conv.ID)
}

// notifyRecipients records a message notification for the other participant.
func (s *ChatService) notifyRecipients(ctx context.Context, conv *models.Conversation, message *models.Message, sender *models.User) {
	if s.notifications == nil {
		return
	}

	senderName := "Someone"
	if sender != nil {
		senderName = sender.Username
	}
	body := message.Text
	if body == "" {
		body = "Sent an image"
	}

	for _, participant := range conv.Participants {
		if participant.ID == message.SenderID {
			continue
		}
		_, err := s.notifications.Notify(ctx, NotifyInput{
			UserID: participant.ID,
			Title:  "New message from " + senderName,
			Body:   body,
			Type:   models.NotificationTypeMessage,
			Meta: map[string]any{
				"conversation_id": conv.ID,
				"message_id":      message.ID,
				"sender_id":       message.SenderID,
			},
		})
		if err != nil {
			middleware.Logger.Warn("chat: message notification failed",
				"user_id", participant.ID, "error", err)
		}
	}
}

// GetConversations returns conversations for the user with unread counters.
func (s *ChatService) GetConversations(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	return s.chatRepo.GetUserConversations(ctx, userID)
}

// GetConversationForUser returns the conversation if the user is a participant.
func (s *ChatService) GetConversationForUser(ctx context.Context, convID, userID uint) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !isConversationParticipant(conv, userID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	return conv, nil
}

// GetMessagesForUser returns messages for a conversation (participant check applied).
func (s *ChatService) GetMessagesForUser(ctx context.Context, convID, userID uint, limit, offset int) ([]*models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	conv, err := s.chatRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !isConversationParticipant(conv, userID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	return s.chatRepo.GetMessages(ctx, convID, limit, offset)
}

// MarkMessageRead marks a message read on behalf of its recipient. The call
// is idempotent; repeated reads of the same message are no-ops.
func (s *ChatService) MarkMessageRead(ctx context.Context, messageID, userID uint) (*models.Message, error) {
	return s.chatRepo.MarkMessageRead(ctx, messageID, userID)
}

// MarkConversationRead resets the user's unread counter for a conversation.
func (s *ChatService) MarkConversationRead(ctx context.Context, convID, userID uint) error {
	ok, err := s.chatRepo.IsParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("You are not a participant in this conversation")
	}
	return s.chatRepo.UpdateLastRead(ctx, convID, userID)
}

// StartConversation finds or creates the direct conversation with another user
// without sending a message, used when opening a chat from a profile or order.
func (s *ChatService) StartConversation(ctx context.Context, userID, otherUserID uint) (*models.Conversation, error) {
	return s.findOrCreateDirect(ctx, userID, otherUserID)
}

func isNotFoundError(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == "NOT_FOUND"
}

func isConversationParticipant(conv *models.Conversation, userID uint) bool {
	for _, participant := range conv.Participants {
		if participant.ID == userID {
			return true
		}
	}
	return false
}
