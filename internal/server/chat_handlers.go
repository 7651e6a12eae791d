// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"encoding/json"

	"alltrade/internal/middleware"
	"alltrade/internal/models"
	"alltrade/internal/notifications"
	"alltrade/internal/service"

	"github.com/gofiber/fiber/v2"
)

// StartConversation handles POST /api/conversations. Starting a conversation
// with the same user twice returns the existing one.
func (s *Server) StartConversation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}

	conv, err := s.chatService.StartConversation(ctx, userID, req.UserID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

// GetConversations handles GET /api/conversations.
func (s *Server) GetConversations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	convs, err := s.chatService.GetConversations(ctx, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(convs)
}

// GetConversation handles GET /api/conversations/:id.
func (s *Server) GetConversation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	conv, err := s.chatService.GetConversationForUser(ctx, id, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(conv)
}

// GetMessages handles GET /api/conversations/:id/messages, oldest first.
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 50)

	messages, err := s.chatService.GetMessagesForUser(ctx, id, userID, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(messages)
}

// SendConversationMessage handles POST /api/conversations/:id/messages.
func (s *Server) SendConversationMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.sendMessage(c, id, 0)
}

// SendMessage handles POST /api/messages. The body names a conversation_id,
// a recipient_id, or both; a recipient_id finds or creates the direct
// conversation, and conversation_id wins when both are present.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	return s.sendMessage(c, 0, 0)
}

func (s *Server) sendMessage(c *fiber.Ctx, conversationID, recipientID uint) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		ConversationID uint   `json:"conversation_id"`
		RecipientID    uint   `json:"recipient_id"`
		Text           string `json:"text"`
		ImageURL       string `json:"image_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if conversationID == 0 {
		conversationID = req.ConversationID
	}
	if recipientID == 0 {
		recipientID = req.RecipientID
	}

	message, conv, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
		SenderID:       userID,
		ConversationID: conversationID,
		RecipientID:    recipientID,
		Text:           req.Text,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}

	s.broadcastChatMessage(ctx, conv.ID, userID, message)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":         message,
		"conversation_id": conv.ID,
	})
}

// MarkMessageRead handles POST /api/messages/:id/read.
func (s *Server) MarkMessageRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	message, err := s.chatService.MarkMessageRead(ctx, id, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}

	if s.chatHub != nil {
		s.chatHub.BroadcastToConversation(message.ConversationID, notifications.ChatMessage{
			Type:           "read",
			ConversationID: message.ConversationID,
			UserID:         userID,
			Payload:        fiber.Map{"message_id": message.ID},
		})
	}

	return c.JSON(message)
}

// MarkConversationRead handles POST /api/conversations/:id/read.
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.chatService.MarkConversationRead(ctx, id, userID); err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"conversation_id": id, "read": true})
}

// broadcastChatMessage delivers a stored message to conversation members on
// this instance and publishes it for the other instances.
func (s *Server) broadcastChatMessage(ctx context.Context, conversationID, senderID uint, message *models.Message) {
	if s.chatHub != nil {
		s.chatHub.BroadcastToConversation(conversationID, notifications.ChatMessage{
			Type:           "message",
			ConversationID: conversationID,
			UserID:         senderID,
			Payload:        message,
		})
	}
	if s.notifier != nil {
		payload, err := json.Marshal(message)
		if err != nil {
			middleware.Logger.Error("failed to marshal chat message",
				"conversation_id", conversationID, "error", err)
			return
		}
		if err := s.notifier.PublishChatMessage(ctx, conversationID, string(payload)); err != nil {
			middleware.Logger.Error("failed to publish chat message",
				"conversation_id", conversationID, "error", err)
		}
	}
}
