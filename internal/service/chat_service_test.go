package service

import (
	"context"
	"testing"

	"alltrade/internal/models"
	"alltrade/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newChatService(t *testing.T, db *gorm.DB) *ChatService {
	t.Helper()
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, nil)
	return NewChatService(
		repository.NewChatRepository(db),
		repository.NewUserRepository(db),
		notifications,
	)
}

func TestChatService_SendMessage_Validation(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	t.Run("Empty message", func(t *testing.T) {
		_, _, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2})
		assert.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", err.(*models.AppError).Code)
	})

	t.Run("Neither conversation nor recipient", func(t *testing.T) {
		_, _, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, Text: "hi"})
		assert.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", err.(*models.AppError).Code)
	})

	t.Run("Stale conversation with unknown recipient", func(t *testing.T) {
		_, _, err := svc.SendMessage(ctx, SendMessageInput{
			SenderID: 1, ConversationID: 1, RecipientID: 999, Text: "hi",
		})
		assert.Error(t, err)
		assert.Equal(t, "NOT_FOUND", err.(*models.AppError).Code)
	})

	t.Run("Message to self", func(t *testing.T) {
		_, _, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 1, Text: "hi"})
		assert.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", err.(*models.AppError).Code)
	})

	t.Run("Unknown recipient", func(t *testing.T) {
		_, _, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 999, Text: "hi"})
		assert.Error(t, err)
		assert.Equal(t, "NOT_FOUND", err.(*models.AppError).Code)
	})
}

func TestChatService_DirectConversation_FindOrCreate(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	msg1, conv1, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID:    alice.ID,
		RecipientID: bob.ID,
		Text:        "hello",
	})
	require.NoError(t, err)
	require.NotNil(t, conv1)
	assert.Equal(t, conv1.ID, msg1.ConversationID)
	assert.Equal(t, alice.ID, msg1.SenderID)

	// Second message by recipient must land in the same thread, regardless of
	// which side initiates.
	msg2, conv2, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID:    bob.ID,
		RecipientID: alice.ID,
		Text:        "again",
	})
	require.NoError(t, err)
	assert.Equal(t, conv1.ID, conv2.ID)
	assert.Equal(t, conv1.ID, msg2.ConversationID)

	var convCount int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&convCount).Error)
	assert.Equal(t, int64(1), convCount)

	// The conversation list reflects the latest message summary.
	convs, err := svc.GetConversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "again", convs[0].LastMessageText)
	assert.Equal(t, 1, convs[0].UnreadCount)

	// Both messages notified the other participant.
	var notifCount int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", bob.ID).Count(&notifCount).Error)
	assert.Equal(t, int64(1), notifCount)
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", alice.ID).Count(&notifCount).Error)
	assert.Equal(t, int64(1), notifCount)
}

func TestChatService_SendMessage_BothIdentifiers(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	_, conv, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "hello",
	})
	require.NoError(t, err)

	// The conversation id wins when both identifiers are supplied, even if
	// the recipient points at a different user.
	msg, same, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID:       alice.ID,
		ConversationID: conv.ID,
		RecipientID:    carol.ID,
		Text:           "both set",
	})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, same.ID)
	assert.Equal(t, conv.ID, msg.ConversationID)

	var convCount int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&convCount).Error)
	assert.Equal(t, int64(1), convCount)

	// A conversation id that no longer resolves falls back to the recipient.
	msg2, fresh, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID:       alice.ID,
		ConversationID: 9999,
		RecipientID:    carol.ID,
		Text:           "fresh thread",
	})
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)
	assert.Equal(t, fresh.ID, msg2.ConversationID)

	// Without a recipient to fall back to, the stale id is an error.
	_, _, err = svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, ConversationID: 8888, Text: "nope",
	})
	assert.Error(t, err)
	assert.Equal(t, "NOT_FOUND", err.(*models.AppError).Code)
}

func TestChatService_SendMessage_NotParticipant(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")

	_, conv, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "hello",
	})
	require.NoError(t, err)

	_, _, err = svc.SendMessage(ctx, SendMessageInput{
		SenderID:       eve.ID,
		ConversationID: conv.ID,
		Text:           "let me in",
	})
	assert.Error(t, err)
	assert.Equal(t, "FORBIDDEN", err.(*models.AppError).Code)
}

func TestChatService_ImageMessage(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	msg, _, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID:    alice.ID,
		RecipientID: bob.ID,
		ImageURL:    "https://cdn.example.com/pic.webp",
	})
	require.NoError(t, err)
	assert.Empty(t, msg.Text)

	convs, err := svc.GetConversations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "[image]", convs[0].LastMessageText)
}

func TestChatService_MarkMessageRead(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	msg, _, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "hello",
	})
	require.NoError(t, err)

	read1, err := svc.MarkMessageRead(ctx, msg.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, read1.IsRead)
	require.NotNil(t, read1.ReadAt)

	// Idempotent: a repeated read keeps the original timestamp.
	read2, err := svc.MarkMessageRead(ctx, msg.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, read1.ReadAt.UnixNano(), read2.ReadAt.UnixNano())

	t.Run("Sender cannot read own message", func(t *testing.T) {
		_, err := svc.MarkMessageRead(ctx, msg.ID, alice.ID)
		assert.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", err.(*models.AppError).Code)
	})
}

func TestChatService_MarkConversationRead(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")

	_, conv, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "one",
	})
	require.NoError(t, err)
	_, _, err = svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, ConversationID: conv.ID, Text: "two",
	})
	require.NoError(t, err)

	convs, err := svc.GetConversations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)

	require.NoError(t, svc.MarkConversationRead(ctx, conv.ID, bob.ID))

	convs, err = svc.GetConversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, convs[0].UnreadCount)

	t.Run("Non-participant rejected", func(t *testing.T) {
		err := svc.MarkConversationRead(ctx, conv.ID, eve.ID)
		assert.Error(t, err)
		assert.Equal(t, "FORBIDDEN", err.(*models.AppError).Code)
	})
}

func TestChatService_GetMessagesForUser(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")

	_, conv, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "first",
	})
	require.NoError(t, err)
	_, _, err = svc.SendMessage(ctx, SendMessageInput{
		SenderID: bob.ID, ConversationID: conv.ID, Text: "second",
	})
	require.NoError(t, err)

	messages, err := svc.GetMessagesForUser(ctx, conv.ID, alice.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Text)
	assert.Equal(t, "second", messages[1].Text)

	_, err = svc.GetMessagesForUser(ctx, conv.ID, eve.ID, 50, 0)
	assert.Error(t, err)
	assert.Equal(t, "FORBIDDEN", err.(*models.AppError).Code)
}

func TestChatService_StartConversation(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	conv, err := svc.StartConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotZero(t, conv.ID)

	// Opening the chat again, or messaging the same user, reuses the thread.
	again, err := svc.StartConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	_, sent, err := svc.SendMessage(ctx, SendMessageInput{
		SenderID: alice.ID, RecipientID: bob.ID, Text: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, sent.ID)
}
