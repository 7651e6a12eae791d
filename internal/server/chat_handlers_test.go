package server

import (
	"net/http"
	"testing"

	"alltrade/internal/models"
	"alltrade/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartConversation_FindOrCreate(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	app := authedApp(alice.ID)
	app.Post("/api/conversations", s.StartConversation)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/conversations", map[string]any{
		"user_id": bob.ID,
	}), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var first models.Conversation
	decodeBody(t, resp, &first)
	require.NotZero(t, first.ID)

	// Starting it again, from either side, returns the same conversation.
	resp2, err := app.Test(jsonRequest(http.MethodPost, "/api/conversations", map[string]any{
		"user_id": bob.ID,
	}), 5000)
	require.NoError(t, err)
	var again models.Conversation
	decodeBody(t, resp2, &again)
	assert.Equal(t, first.ID, again.ID)

	bobApp := authedApp(bob.ID)
	bobApp.Post("/api/conversations", s.StartConversation)
	resp3, err := bobApp.Test(jsonRequest(http.MethodPost, "/api/conversations", map[string]any{
		"user_id": alice.ID,
	}), 5000)
	require.NoError(t, err)
	var reversed models.Conversation
	decodeBody(t, resp3, &reversed)
	assert.Equal(t, first.ID, reversed.ID)
}

func TestStartConversation_Rejections(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")

	app := authedApp(alice.ID)
	app.Post("/api/conversations", s.StartConversation)

	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
	}{
		{"With Self", map[string]any{"user_id": alice.ID}, http.StatusBadRequest},
		{"Unknown User", map[string]any{"user_id": 9999}, http.StatusNotFound},
		{"Missing User ID", map[string]any{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(http.MethodPost, "/api/conversations", tt.body), 5000)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestSendMessage_ByRecipient(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	app := authedApp(alice.ID)
	app.Post("/api/messages", s.SendMessage)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/messages", map[string]any{
		"recipient_id": bob.ID,
		"text":         "Is the bag still available?",
	}), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Message        models.Message `json:"message"`
		ConversationID uint           `json:"conversation_id"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Is the bag still available?", body.Message.Text)
	assert.Equal(t, alice.ID, body.Message.SenderID)
	require.NotZero(t, body.ConversationID)

	// The recipient gets a message notification.
	count, err := s.notificationService.UnreadCount(t.Context(), bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// A reply lands in the same conversation.
	bobApp := authedApp(bob.ID)
	bobApp.Post("/api/messages", s.SendMessage)
	resp2, err := bobApp.Test(jsonRequest(http.MethodPost, "/api/messages", map[string]any{
		"recipient_id": alice.ID,
		"text":         "Yes, still here",
	}), 5000)
	require.NoError(t, err)
	var reply struct {
		ConversationID uint `json:"conversation_id"`
	}
	decodeBody(t, resp2, &reply)
	assert.Equal(t, body.ConversationID, reply.ConversationID)

	// Naming both the conversation and the recipient keeps the message in
	// the named conversation.
	resp3, err := app.Test(jsonRequest(http.MethodPost, "/api/messages", map[string]any{
		"conversation_id": body.ConversationID,
		"recipient_id":    bob.ID,
		"text":            "Great, I'll take it",
	}), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp3.StatusCode)
	var both struct {
		ConversationID uint `json:"conversation_id"`
	}
	decodeBody(t, resp3, &both)
	assert.Equal(t, body.ConversationID, both.ConversationID)
}

func TestSendMessage_Rejections(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	conv, err := s.chatService.StartConversation(t.Context(), alice.ID, bob.ID)
	require.NoError(t, err)

	app := authedApp(alice.ID)
	app.Post("/api/messages", s.SendMessage)

	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
	}{
		{
			name:           "Empty Message",
			body:           map[string]any{"conversation_id": conv.ID},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "No Target",
			body:           map[string]any{"text": "hi"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(http.MethodPost, "/api/messages", tt.body), 5000)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}

	t.Run("Non-Participant", func(t *testing.T) {
		mallory := createTestUser(t, s.db, "mallory")
		malloryApp := authedApp(mallory.ID)
		malloryApp.Post("/api/messages", s.SendMessage)
		resp, err := malloryApp.Test(jsonRequest(http.MethodPost, "/api/messages", map[string]any{
			"conversation_id": conv.ID,
			"text":            "let me in",
		}), 5000)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestSendConversationMessage(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	conv, err := s.chatService.StartConversation(t.Context(), alice.ID, bob.ID)
	require.NoError(t, err)

	app := authedApp(alice.ID)
	app.Post("/api/conversations/:id/messages", s.SendConversationMessage)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/conversations/1/messages", map[string]any{
		"text": "Sent via the conversation route",
	}), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ConversationID uint `json:"conversation_id"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, conv.ID, body.ConversationID)
}

func TestGetMessages(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	mallory := createTestUser(t, s.db, "mallory")

	_, conv, err := s.chatService.SendMessage(t.Context(), service.SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "first",
	})
	require.NoError(t, err)
	_, _, err = s.chatService.SendMessage(t.Context(), service.SendMessageInput{
		SenderID: bob.ID, ConversationID: conv.ID, Text: "second",
	})
	require.NoError(t, err)

	app := authedApp(bob.ID)
	app.Get("/api/conversations/:id/messages", s.GetMessages)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/conversations/1/messages", nil), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []models.Message
	decodeBody(t, resp, &messages)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Text)
	assert.Equal(t, "second", messages[1].Text)

	// Outsiders cannot read the thread.
	malloryApp := authedApp(mallory.ID)
	malloryApp.Get("/api/conversations/:id/messages", s.GetMessages)
	resp2, err := malloryApp.Test(jsonRequest(http.MethodGet, "/api/conversations/1/messages", nil), 5000)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
}

func TestMarkMessageRead(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	message, _, err := s.chatService.SendMessage(t.Context(), service.SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "read me",
	})
	require.NoError(t, err)

	app := authedApp(bob.ID)
	app.Post("/api/messages/:id/read", s.MarkMessageRead)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/messages/1/read", nil), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var read models.Message
	decodeBody(t, resp, &read)
	assert.Equal(t, message.ID, read.ID)
	assert.True(t, read.IsRead)
}

func TestMarkConversationRead(t *testing.T) {
	s := newTestServer(t, nil)
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	mallory := createTestUser(t, s.db, "mallory")

	_, conv, err := s.chatService.SendMessage(t.Context(), service.SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "unread",
	})
	require.NoError(t, err)

	app := authedApp(bob.ID)
	app.Post("/api/conversations/:id/read", s.MarkConversationRead)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/conversations/1/read", nil), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ConversationID uint `json:"conversation_id"`
		Read           bool `json:"read"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, conv.ID, body.ConversationID)
	assert.True(t, body.Read)

	malloryApp := authedApp(mallory.ID)
	malloryApp.Post("/api/conversations/:id/read", s.MarkConversationRead)
	resp2, err := malloryApp.Test(jsonRequest(http.MethodPost, "/api/conversations/1/read", nil), 5000)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
}
