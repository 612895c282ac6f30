package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"creatorlink/internal/domain/entity"
	"creatorlink/internal/domain/repository"
	"creatorlink/pkg/errors"
	"creatorlink/pkg/logger"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

// conversationDocID builds the deterministic document ID for a campaign
// and unordered participant pair. Firestore's create precondition on this
// ID is the uniqueness constraint for the one-conversation-per-pair rule.
func conversationDocID(campaignID string, participants []string) string {
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)
	return campaignID + "_" + strings.Join(sorted, "_")
}

func (r *firestoreConversationRepository) Create(ctx context.Context, conv *entity.Conversation) error {
	conv.ID = conversationDocID(conv.CampaignID, conv.Participants)

	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	_, err := r.client.Collection("conversations").Doc(conv.ID).Create(ctx, conv)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Conversation already exists for this campaign and creator")
		}
		return mapPersistenceError("Failed to create conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.client.Collection("conversations").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", nil)
		}
		return nil, mapPersistenceError("Failed to get conversation", err)
	}

	var conv entity.Conversation
	if err := doc.DataTo(&conv); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}

	return &conv, nil
}

func (r *firestoreConversationRepository) GetByCampaignAndParticipants(ctx context.Context, campaignID string, participants []string) (*entity.Conversation, error) {
	return r.GetByID(ctx, conversationDocID(campaignID, participants))
}

func (r *firestoreConversationRepository) ListByUserID(ctx context.Context, userID, connectionStatus string, limit, offset int) ([]*entity.Conversation, int64, error) {
	query := r.client.Collection("conversations").
		Where("participants", "array-contains", userID).
		OrderBy("lastActivityAt", firestore.Desc)
	if connectionStatus != "" {
		query = query.Where("connectionStatus", "==", connectionStatus)
	}

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("firestore error listing conversations for user %s: %v", userID, err)
		return nil, 0, mapPersistenceError("Failed to fetch conversations", err)
	}

	total := int64(len(allDocs))

	start := offset
	if start > len(allDocs) {
		start = len(allDocs)
	}
	end := len(allDocs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var conversations []*entity.Conversation
	for i := start; i < end; i++ {
		var conv entity.Conversation
		if err := allDocs[i].DataTo(&conv); err != nil {
			logger.Warn("skipping malformed conversation document %s: %v", allDocs[i].Ref.ID, err)
			continue
		}
		conversations = append(conversations, &conv)
	}

	return conversations, total, nil
}

func (r *firestoreConversationRepository) Update(ctx context.Context, conv *entity.Conversation) error {
	conv.UpdatedAt = time.Now()

	_, err := r.client.Collection("conversations").Doc(conv.ID).Set(ctx, conv)
	if err != nil {
		return mapPersistenceError("Failed to update conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()

	_, err := r.messageDoc(message.ConversationID, message.ID).Set(ctx, message)
	if err != nil {
		return mapPersistenceError("Failed to create message", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	doc, err := r.messageDoc(conversationID, messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", nil)
		}
		return nil, mapPersistenceError("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}

	return &message, nil
}

func (r *firestoreConversationRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.client.Collection("conversations").Doc(conversationID).Collection("messages").
		OrderBy("createdAt", firestore.Desc).
		OrderBy("seq", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("firestore error counting messages for conversation %s: %v", conversationID, err)
		return nil, 0, mapPersistenceError("Failed to count messages", err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, mapPersistenceError("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreConversationRepository) AddReadReceipt(ctx context.Context, conversationID, messageID, readerID string, at time.Time) (time.Time, error) {
	docRef := r.messageDoc(conversationID, messageID)
	readAt := at

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Message", nil)
			}
			return err
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return errors.Internal("Failed to parse message data", err)
		}

		if existing, ok := message.ReadReceipts[readerID]; ok {
			readAt = existing
			return nil
		}

		if message.ReadReceipts == nil {
			message.ReadReceipts = make(map[string]time.Time)
		}
		message.ReadReceipts[readerID] = at
		message.DeliveryStatus = entity.DeliveryRead

		return tx.Set(docRef, &message)
	})
	if err != nil {
		if errors.Is(err, "NOT_FOUND") || errors.Is(err, "INTERNAL_ERROR") {
			return time.Time{}, err
		}
		return time.Time{}, mapPersistenceError("Failed to record read receipt", err)
	}

	return readAt, nil
}

func (r *firestoreConversationRepository) MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error) {
	messagesRef := r.client.Collection("conversations").Doc(conversationID).Collection("messages")

	var changed []string
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = changed[:0]

		iter := tx.Documents(messagesRef)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return err
			}

			var message entity.Message
			if err := doc.DataTo(&message); err != nil {
				logger.Warn("skipping malformed message document %s: %v", doc.Ref.ID, err)
				continue
			}
			if !message.UnreadFor(readerID) {
				continue
			}

			if message.ReadReceipts == nil {
				message.ReadReceipts = make(map[string]time.Time)
			}
			message.ReadReceipts[readerID] = at
			message.DeliveryStatus = entity.DeliveryRead

			if err := tx.Set(doc.Ref, &message); err != nil {
				return err
			}
			changed = append(changed, message.ID)
		}

		return nil
	})
	if err != nil {
		return nil, mapPersistenceError("Failed to mark conversation as read", err)
	}

	return changed, nil
}

func (r *firestoreConversationRepository) CountUnread(ctx context.Context, conversationID, readerID string) (int, error) {
	docs, err := r.client.Collection("conversations").Doc(conversationID).Collection("messages").
		Documents(ctx).GetAll()
	if err != nil {
		return 0, mapPersistenceError("Failed to count unread messages", err)
	}

	count := 0
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			continue
		}
		if message.UnreadFor(readerID) {
			count++
		}
	}

	return count, nil
}

func (r *firestoreConversationRepository) messageDoc(conversationID, messageID string) *firestore.DocumentRef {
	return r.client.Collection("conversations").Doc(conversationID).Collection("messages").Doc(messageID)
}

// mapPersistenceError separates transient store faults, which callers may
// retry, from everything else.
func mapPersistenceError(message string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return errors.Unavailable(message, err)
	}
	return errors.Internal(message, err)
}
