// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alltrade/internal/middleware"
	"alltrade/internal/notifications"
	"alltrade/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// presenceFollowerCap bounds how many followers receive a presence event.
const presenceFollowerCap = 200

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and userID is read from connection locals.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.Close()
			return
		}
		uid, ok := userIDVal.(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.Close()
			return
		}

		// Register connection with scaling guardrails
		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", "user_id", uid, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		defer s.hub.UnregisterClient(client)
		s.consumeWSTicket(ctx, conn.Locals("wsTicket"))

		// Presence logic
		s.notifyFollowersPresence(ctx, uid, "online")
		s.sendFollowingOnlineSnapshot(conn, uid)

		// Start pumps
		go client.WritePump()
		client.ReadPump()

		// After ReadPump returns, client is disconnected
		if !s.hub.IsOnline(uid) {
			s.notifyFollowersPresence(ctx, uid, "offline")
		}
	})
}

// WebSocketChatHandler handles WebSocket connections for real-time chat
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			middleware.Logger.Warn("websocket chat: unknown user", "user_id", userID, "error", err)
			_ = conn.Close()
			return
		}
		username := user.Username

		if s.chatHub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.chatHub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket chat register failed", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		s.consumeWSTicket(ctx, conn.Locals("wsTicket"))

		client.IncomingHandler = func(c *notifications.Client, raw []byte) {
			var incomingMsg map[string]interface{}
			if err := json.Unmarshal(raw, &incomingMsg); err != nil {
				middleware.Logger.Debug("websocket chat: invalid message", "user_id", userID)
				return
			}

			msgType, ok := incomingMsg["type"].(string)
			if !ok {
				return
			}

			switch msgType {
			case "join":
				if convIDFloat, ok := incomingMsg["conversation_id"].(float64); ok {
					convID := uint(convIDFloat)
					// Verify user is participant before joining
					if s.isUserParticipant(ctx, userID, convID) {
						s.chatHub.JoinConversation(userID, convID)

						response := notifications.ChatMessage{
							Type:           "joined",
							ConversationID: convID,
							Payload:        map[string]interface{}{"conversation_id": convID},
						}
						responseJSON, _ := json.Marshal(response)
						c.TrySend(responseJSON)
					}
				}

			case "leave":
				if convIDFloat, ok := incomingMsg["conversation_id"].(float64); ok {
					s.chatHub.LeaveConversation(userID, uint(convIDFloat))
				}

			case "typing":
				// Typing indicator - limit to 10 per 10 seconds to prevent spam
				if convIDFloat, ok := incomingMsg["conversation_id"].(float64); ok {
					convID := uint(convIDFloat)
					isTyping, _ := incomingMsg["is_typing"].(bool)

					if s.notifier != nil && s.isUserParticipant(ctx, userID, convID) {
						id := fmt.Sprintf("user:%d", userID)
						allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "typing", id, 10, 10*time.Second)
						if !allowed {
							return // Silently drop spammy typing indicators
						}

						if perr := s.notifier.PublishTypingIndicator(ctx, convID, userID, username, isTyping); perr != nil {
							middleware.Logger.Error("publish typing indicator failed", "error", perr)
						}
					}
				}

			case "message":
				// Send a message (alternative to HTTP endpoint)
				if convIDFloat, ok := incomingMsg["conversation_id"].(float64); ok {
					convID := uint(convIDFloat)
					text, _ := incomingMsg["text"].(string)
					imageURL, _ := incomingMsg["image_url"].(string)

					if text == "" && imageURL == "" {
						return
					}

					// Rate limit messages - same as HTTP (15 per minute)
					id := fmt.Sprintf("user:%d", userID)
					allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_chat", id, 15, time.Minute)
					if !allowed {
						response := notifications.ChatMessage{
							Type: "error",
							Payload: map[string]string{
								"message": "Rate limit exceeded. Please wait a moment.",
							},
						}
						if respJSON, err := json.Marshal(response); err == nil {
							c.TrySend(respJSON)
						}
						return
					}

					message, conv, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
						SenderID:       userID,
						ConversationID: convID,
						Text:           text,
						ImageURL:       imageURL,
					})
					if err != nil {
						response := notifications.ChatMessage{
							Type:    "error",
							Payload: map[string]string{"message": err.Error()},
						}
						if respJSON, merr := json.Marshal(response); merr == nil {
							c.TrySend(respJSON)
						}
						return
					}

					s.broadcastChatMessage(ctx, conv.ID, userID, message)
				}

			case "read":
				if convIDFloat, ok := incomingMsg["conversation_id"].(float64); ok {
					convID := uint(convIDFloat)
					if err := s.chatService.MarkConversationRead(ctx, convID, userID); err != nil {
						return
					}

					// Broadcast read receipt
					if s.notifier != nil {
						readMsg := notifications.ChatMessage{
							Type:           "read",
							ConversationID: convID,
							UserID:         userID,
							Username:       username,
							Payload:        map[string]interface{}{"conversation_id": convID, "user_id": userID},
						}
						readJSON, _ := json.Marshal(readMsg)
						if perr := s.notifier.PublishChatMessage(ctx, convID, string(readJSON)); perr != nil {
							middleware.Logger.Error("publish read receipt failed", "error", perr)
						}
					}
				}
			}
		}

		// Send welcome message
		welcomeMsg := notifications.ChatMessage{
			Type:    "connected",
			Payload: map[string]interface{}{"user_id": userID, "username": username},
		}
		if welcomeJSON, err := json.Marshal(welcomeMsg); err == nil {
			client.TrySend(welcomeJSON)
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking). The hub
		// broadcasts the offline transition itself once the grace window
		// elapses without a reconnect.
		client.ReadPump()
	})
}

// isUserParticipant checks if a user is a participant in a conversation
func (s *Server) isUserParticipant(ctx context.Context, userID, conversationID uint) bool {
	ok, err := s.chatRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return false
	}
	return ok
}

// notifyFollowersPresence pushes a presence transition to the user's
// followers. Fan-out is capped; accounts with huge followings fall back to
// pull-based presence.
func (s *Server) notifyFollowersPresence(ctx context.Context, userID uint, status string) {
	if s.followRepo == nil {
		return
	}
	followers, err := s.followRepo.ListFollowers(ctx, userID, presenceFollowerCap, 0)
	if err != nil {
		middleware.Logger.Error("failed to load followers for presence event", "error", err)
		return
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		middleware.Logger.Error("failed to load user for presence event", "error", err)
		return
	}
	for _, follower := range followers {
		s.publishUserEvent(ctx, follower.ID, eventPresenceChanged, map[string]interface{}{
			"user_id":    user.ID,
			"username":   user.Username,
			"avatar":     user.Avatar,
			"status":     status,
			"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// sendFollowingOnlineSnapshot tells a freshly connected user which of the
// sellers they follow are online right now.
func (s *Server) sendFollowingOnlineSnapshot(conn *websocket.Conn, userID uint) {
	if s.followRepo == nil || s.hub == nil {
		return
	}
	following, err := s.followRepo.ListFollowing(context.Background(), userID, presenceFollowerCap, 0)
	if err != nil {
		middleware.Logger.Error("failed to load following for online snapshot", "error", err)
		return
	}
	onlineIDs := make([]uint, 0, len(following))
	for _, u := range following {
		if s.hub.IsOnline(u.ID) {
			onlineIDs = append(onlineIDs, u.ID)
		}
	}
	msg, err := json.Marshal(map[string]interface{}{
		"type": "following_online_snapshot",
		"payload": map[string]interface{}{
			"user_ids": onlineIDs,
		},
	})
	if err != nil {
		middleware.Logger.Error("failed to marshal online snapshot", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		middleware.Logger.Error("failed to write online snapshot", "error", err)
	}
}
