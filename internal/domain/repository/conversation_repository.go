package repository

import (
	"context"
	"time"

	"creatorlink/internal/domain/entity"
)

type ConversationRepository interface {
	// Create persists a new conversation. Returns a Conflict error when a
	// conversation for the same (campaign, participant pair) already exists.
	Create(ctx context.Context, conv *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	// GetByCampaignAndParticipants looks up the unique conversation for the
	// campaign and unordered participant pair.
	GetByCampaignAndParticipants(ctx context.Context, campaignID string, participants []string) (*entity.Conversation, error)
	// ListByUserID returns the user's inbox ordered by last activity,
	// newest first, optionally filtered by connection status.
	ListByUserID(ctx context.Context, userID, status string, limit, offset int) ([]*entity.Conversation, int64, error)
	Update(ctx context.Context, conv *entity.Conversation) error

	CreateMessage(ctx context.Context, msg *entity.Message) error
	GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	// ListMessages returns messages newest first with the total count.
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	// AddReadReceipt records (readerID, at) on the message if absent and
	// promotes its delivery status to read. A present receipt is left
	// untouched; the call is idempotent and returns the effective readAt.
	AddReadReceipt(ctx context.Context, conversationID, messageID, readerID string, at time.Time) (time.Time, error)
	// MarkAllRead applies AddReadReceipt semantics to every unread message
	// in the conversation not sent by readerID, atomically, and returns
	// the IDs of the messages that changed.
	MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error)
	CountUnread(ctx context.Context, conversationID, readerID string) (int, error)
}
