package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"creatorlink/internal/domain/entity"
	"creatorlink/internal/domain/repository"
	"creatorlink/internal/infrastructure/ratelimit"
	ws "creatorlink/internal/infrastructure/websocket"
	"creatorlink/pkg/errors"
	"creatorlink/pkg/logger"
)

// EventPublisher is the fan-out surface the usecase pushes events through.
// Implemented by the websocket manager; tests inject a fake.
type EventPublisher interface {
	Publish(ch ws.Channel, event string, payload interface{})
	PublishExcept(ch ws.Channel, excludeUserID string, event string, payload interface{})
}

// ChatUseCase owns the conversation lifecycle, the message pipeline and
// the recruitment state machine. Persistence goes through the injected
// repositories; real-time delivery is best effort via the publisher and
// never affects the outcome of an operation.
type ChatUseCase struct {
	convRepo     repository.ConversationRepository
	userRepo     repository.UserRepository
	campaignRepo repository.CampaignRepository
	publisher    EventPublisher
	rateLimiter  *ratelimit.RateLimiter

	// strictFlow enforces the recruitment transition graph instead of the
	// permissive any-participant-sets-anything behavior.
	strictFlow bool

	// convLocks serializes mutations per conversation so the last-message
	// pointer can never trail a concurrent later send.
	convLocks sync.Map
}

func NewChatUseCase(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	campaignRepo repository.CampaignRepository,
	publisher EventPublisher,
	strictFlow bool,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		convRepo:     convRepo,
		userRepo:     userRepo,
		campaignRepo: campaignRepo,
		publisher:    publisher,
		rateLimiter:  rateLimiter,
		strictFlow:   strictFlow,
	}
}

type InitiateConversationInput struct {
	CampaignID   string
	CreatorID    string
	FirstMessage string
}

type OfferInput struct {
	Amount      float64
	Currency    string
	Description string
	Deadline    *time.Time
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	Kind           string
	Offer          *OfferInput
}

type ConversationResponse struct {
	*entity.Conversation
	Campaign    *entity.Campaign `json:"campaign,omitempty"`
	OtherUser   *entity.User     `json:"other_user,omitempty"`
	UnreadCount int              `json:"unread_count"`
}

type MessageResponse struct {
	*entity.Message
	Sender *entity.User `json:"sender,omitempty"`
}

// InitiateConversation opens the unique conversation for a (campaign,
// creator) pair. Only the campaign's brand may call it, and only for a
// creator that has applied and is in good standing. Repeating the call
// returns the existing conversation instead of failing.
func (uc *ChatUseCase) InitiateConversation(ctx context.Context, requesterID string, input InitiateConversationInput) (*ConversationResponse, error) {
	allowed, wait := uc.rateLimiter.Allow(requesterID, "initiate_conversation")
	if !allowed {
		logger.Warn("InitiateConversation rate limited: user %s must wait %v", requesterID, wait)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another conversation")
	}

	campaign, err := uc.campaignRepo.GetByID(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	if campaign.BrandID != requesterID {
		return nil, errors.Forbidden("Only the campaign's brand can start a conversation", nil)
	}

	if !campaign.HasApplicant(input.CreatorID) {
		return nil, errors.InvalidState("Creator has not applied to this campaign")
	}

	creator, err := uc.userRepo.GetByID(ctx, input.CreatorID)
	if err != nil {
		return nil, errors.NotFound("Creator", err)
	}
	if !creator.IsActive() {
		return nil, errors.NotFound("Creator", nil)
	}

	participants := []string{requesterID, input.CreatorID}

	if existing, err := uc.convRepo.GetByCampaignAndParticipants(ctx, input.CampaignID, participants); err == nil && existing != nil {
		return uc.buildConversationResponse(ctx, existing, requesterID), nil
	} else if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	now := time.Now()
	conv := &entity.Conversation{
		CampaignID:        input.CampaignID,
		Participants:      participants,
		BrandID:           requesterID,
		CreatorID:         input.CreatorID,
		InitiatorID:       requesterID,
		ConnectionStatus:  entity.ConnectionActive,
		RecruitmentStatus: entity.RecruitmentDiscussing,
		LastActivityAt:    now,
	}

	if err := uc.convRepo.Create(ctx, conv); err != nil {
		// A concurrent initiate won the uniqueness race; return its result.
		if errors.Is(err, "CONFLICT") {
			if existing, lookupErr := uc.convRepo.GetByCampaignAndParticipants(ctx, input.CampaignID, participants); lookupErr == nil {
				return uc.buildConversationResponse(ctx, existing, requesterID), nil
			}
		}
		return nil, err
	}

	unlock := uc.lockConversation(conv.ID)

	_, err = uc.appendMessage(ctx, conv, &entity.Message{
		ConversationID: conv.ID,
		SenderID:       entity.SystemSenderID,
		Content:        fmt.Sprintf("Conversation started for campaign %q", campaign.Name),
		Kind:           entity.MessageKindSystem,
		SystemKind:     entity.SystemChatStarted,
		DeliveryStatus: entity.DeliveryDelivered,
	})
	if err != nil {
		unlock()
		return nil, err
	}

	var firstMsg *entity.Message
	if trimmed := strings.TrimSpace(input.FirstMessage); trimmed != "" {
		firstMsg, err = uc.appendMessage(ctx, conv, &entity.Message{
			ConversationID: conv.ID,
			SenderID:       requesterID,
			Content:        trimmed,
			Kind:           entity.MessageKindText,
			DeliveryStatus: entity.DeliverySent,
		})
		if err != nil {
			unlock()
			return nil, err
		}
	}

	if err := uc.convRepo.Update(ctx, conv); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	resp := uc.buildConversationResponse(ctx, conv, requesterID)
	uc.publisher.Publish(ws.PersonalChannel(input.CreatorID), ws.EventNewChat, map[string]interface{}{
		"conversation": resp,
	})
	if firstMsg != nil {
		uc.publishNewMessage(ctx, conv, firstMsg, requesterID)
	}

	return resp, nil
}

// SendMessage validates, persists and fans out one message. Success is
// determined solely by persistence; a subscriber that cannot be reached is
// not an error.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, wait := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", senderID, wait)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	kind := input.Kind
	if kind == "" {
		kind = entity.MessageKindText
	}
	if kind != entity.MessageKindText && kind != entity.MessageKindOffer {
		return nil, errors.Validation("kind must be text or offer")
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errors.Validation("message content must not be empty")
	}
	if utf8.RuneCountInString(content) > entity.MaxContentLength {
		return nil, errors.Validation(fmt.Sprintf("message content exceeds %d characters", entity.MaxContentLength))
	}

	var offer *entity.OfferPayload
	if kind == entity.MessageKindOffer {
		if input.Offer == nil {
			return nil, errors.Validation("offer payload is required for offer messages")
		}
		if input.Offer.Amount <= 0 {
			return nil, errors.Validation("offer amount must be positive")
		}
		if input.Offer.Currency == "" {
			return nil, errors.Validation("offer currency is required")
		}
		offer = &entity.OfferPayload{
			Amount:      input.Offer.Amount,
			Currency:    input.Offer.Currency,
			Description: input.Offer.Description,
			Deadline:    input.Offer.Deadline,
		}
	} else if input.Offer != nil {
		return nil, errors.Validation("offer payload is only allowed on offer messages")
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, errors.NotFound("Sender", err)
	}

	unlock := uc.lockConversation(input.ConversationID)

	conv, err := uc.convRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		unlock()
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		unlock()
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}
	if conv.ConnectionStatus != entity.ConnectionActive {
		unlock()
		return nil, errors.InvalidState("Conversation is not active")
	}

	message, err := uc.appendMessage(ctx, conv, &entity.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
		Offer:          offer,
		DeliveryStatus: entity.DeliverySent,
	})
	if err != nil {
		unlock()
		return nil, err
	}
	if err := uc.convRepo.Update(ctx, conv); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	uc.publishNewMessage(ctx, conv, message, senderID)

	return &MessageResponse{Message: message, Sender: sender}, nil
}

// MarkMessageRead records a read receipt for one message. Re-marking is a
// no-op, not an error, and the original readAt is preserved.
func (uc *ChatUseCase) MarkMessageRead(ctx context.Context, readerID, conversationID, messageID string) error {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return errors.Forbidden("You are not a participant in this conversation", nil)
	}

	message, err := uc.convRepo.GetMessageByID(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if message.SenderID == readerID {
		return errors.Forbidden("You cannot mark your own message as read", nil)
	}

	unlock := uc.lockConversation(conversationID)
	readAt, err := uc.convRepo.AddReadReceipt(ctx, conversationID, messageID, readerID, time.Now())
	unlock()
	if err != nil {
		return err
	}

	uc.publisher.PublishExcept(ws.ConversationChannel(conversationID), readerID, ws.EventMessageReadReceipt, map[string]interface{}{
		"conversation_id": conversationID,
		"message_id":      messageID,
		"read_by":         readerID,
		"read_at":         readAt.UTC().Format(time.RFC3339),
	})

	return nil
}

// MarkAllRead marks every unread message from other participants as read,
// atomically per conversation. Returns the number of messages affected.
func (uc *ChatUseCase) MarkAllRead(ctx context.Context, readerID, conversationID string) (int, error) {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(readerID) {
		return 0, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	now := time.Now()
	unlock := uc.lockConversation(conversationID)
	changed, err := uc.convRepo.MarkAllRead(ctx, conversationID, readerID, now)
	unlock()
	if err != nil {
		return 0, err
	}

	for _, messageID := range changed {
		uc.publisher.PublishExcept(ws.ConversationChannel(conversationID), readerID, ws.EventMessageReadReceipt, map[string]interface{}{
			"conversation_id": conversationID,
			"message_id":      messageID,
			"read_by":         readerID,
			"read_at":         now.UTC().Format(time.RFC3339),
		})
	}

	return len(changed), nil
}

// ListMessages pages through the conversation's log. Page 1 holds the most
// recent pageSize messages; within every page messages run oldest first.
func (uc *ChatUseCase) ListMessages(ctx context.Context, requesterID, conversationID string, page, pageSize int) ([]*MessageResponse, int64, error) {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, 0, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	offset := (page - 1) * pageSize
	messages, total, err := uc.convRepo.ListMessages(ctx, conversationID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	// Repo order is newest first for page selection; flip for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	senders := make(map[string]*entity.User)
	responses := make([]*MessageResponse, 0, len(messages))
	for _, message := range messages {
		resp := &MessageResponse{Message: message}
		if message.SenderID != entity.SystemSenderID {
			sender, ok := senders[message.SenderID]
			if !ok {
				sender, err = uc.userRepo.GetByID(ctx, message.SenderID)
				if err != nil {
					logger.Warn("ListMessages: sender %s not found for message %s: %v", message.SenderID, message.ID, err)
					sender = nil
				}
				senders[message.SenderID] = sender
			}
			resp.Sender = sender
		}
		responses = append(responses, resp)
	}

	return responses, total, nil
}

// ListConversations returns the user's inbox ordered by last activity,
// optionally filtered by connection status.
func (uc *ChatUseCase) ListConversations(ctx context.Context, userID, status string, limit, offset int) ([]*ConversationResponse, int64, error) {
	if status != "" && !entity.ValidConnectionStatus(status) {
		return nil, 0, errors.Validation("status must be one of: active, archived, blocked")
	}

	conversations, total, err := uc.convRepo.ListByUserID(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		responses = append(responses, uc.buildConversationResponse(ctx, conv, userID))
	}

	return responses, total, nil
}

func (uc *ChatUseCase) GetConversation(ctx context.Context, userID, conversationID string) (*ConversationResponse, error) {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	return uc.buildConversationResponse(ctx, conv, userID), nil
}

// recruitmentGraph holds the transitions permitted in strict mode.
var recruitmentGraph = map[string][]string{
	entity.RecruitmentDiscussing: {entity.RecruitmentOfferSent},
	entity.RecruitmentOfferSent:  {entity.RecruitmentAccepted, entity.RecruitmentDeclined},
	entity.RecruitmentAccepted:   {entity.RecruitmentCompleted},
	entity.RecruitmentDeclined:   {},
	entity.RecruitmentCompleted:  {},
}

// SetRecruitmentStatus advances the negotiation phase. Permissive by
// default: any participant may set any value. With strict flow enabled the
// transition graph applies. Status changes never create offer messages;
// the two concepts stay decoupled.
func (uc *ChatUseCase) SetRecruitmentStatus(ctx context.Context, requesterID, conversationID, status string) (*ConversationResponse, error) {
	if !entity.ValidRecruitmentStatus(status) {
		return nil, errors.Validation("status must be one of: discussing, offer_sent, accepted, declined, completed")
	}

	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	unlock := uc.lockConversation(conversationID)
	conv, err = uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		unlock()
		return nil, err
	}
	if uc.strictFlow && conv.RecruitmentStatus != status && !transitionAllowed(conv.RecruitmentStatus, status) {
		from := conv.RecruitmentStatus
		unlock()
		return nil, errors.InvalidState(fmt.Sprintf("Cannot move recruitment status from %s to %s", from, status))
	}
	conv.RecruitmentStatus = status
	conv.LastActivityAt = time.Now()
	if err := uc.convRepo.Update(ctx, conv); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	uc.publishStatusUpdate(conv, requesterID, "recruitment_status", status)

	return uc.buildConversationResponse(ctx, conv, requesterID), nil
}

// SetConnectionStatus archives, blocks or reactivates the conversation.
// Blocked and archived conversations reject new messages but stay fully
// readable.
func (uc *ChatUseCase) SetConnectionStatus(ctx context.Context, requesterID, conversationID, status string) (*ConversationResponse, error) {
	if !entity.ValidConnectionStatus(status) {
		return nil, errors.Validation("status must be one of: active, archived, blocked")
	}

	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	unlock := uc.lockConversation(conversationID)
	conv, err = uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		unlock()
		return nil, err
	}
	conv.ConnectionStatus = status
	conv.LastActivityAt = time.Now()
	if err := uc.convRepo.Update(ctx, conv); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	uc.publishStatusUpdate(conv, requesterID, "connection_status", status)

	return uc.buildConversationResponse(ctx, conv, requesterID), nil
}

// UnreadCount is the number of messages from other participants the user
// has not read yet.
func (uc *ChatUseCase) UnreadCount(ctx context.Context, userID, conversationID string) (int, error) {
	return uc.convRepo.CountUnread(ctx, conversationID, userID)
}

// VerifyParticipant is the membership check the socket layer runs before
// subscribing a connection to a conversation channel.
func (uc *ChatUseCase) VerifyParticipant(ctx context.Context, userID, conversationID string) error {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant in this conversation", nil)
	}
	return nil
}

// HandleTyping relays transient typing indicators. Failures are dropped
// silently; nothing here is persisted.
func (uc *ChatUseCase) HandleTyping(ctx context.Context, userID, conversationID string, typing bool) {
	if conversationID == "" {
		return
	}
	if allowed, _ := uc.rateLimiter.Allow(userID, "typing"); !allowed {
		return
	}

	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		logger.Debug("HandleTyping: conversation %s not found: %v", conversationID, err)
		return
	}
	if !conv.HasParticipant(userID) {
		return
	}

	event := ws.EventUserTyping
	if !typing {
		event = ws.EventUserStoppedTyping
	}
	uc.publisher.PublishExcept(ws.ConversationChannel(conversationID), userID, event, map[string]interface{}{
		"identity_id":     userID,
		"conversation_id": conversationID,
	})
}

// appendMessage persists the message with the next sequence number and
// moves the conversation's last-message pointer. Caller must hold the
// conversation lock and flush conv with Update afterwards.
func (uc *ChatUseCase) appendMessage(ctx context.Context, conv *entity.Conversation, message *entity.Message) (*entity.Message, error) {
	message.Seq = conv.MessageSeq + 1
	if message.ReadReceipts == nil {
		message.ReadReceipts = make(map[string]time.Time)
	}

	if err := uc.convRepo.CreateMessage(ctx, message); err != nil {
		return nil, err
	}

	conv.MessageSeq = message.Seq
	conv.LastMessageID = message.ID
	conv.LastActivityAt = message.CreatedAt

	return message, nil
}

func (uc *ChatUseCase) publishNewMessage(ctx context.Context, conv *entity.Conversation, message *entity.Message, senderID string) {
	var sender *entity.User
	if senderID != entity.SystemSenderID {
		sender, _ = uc.userRepo.GetByID(ctx, senderID)
	}

	payload := map[string]interface{}{
		"conversation_id": conv.ID,
		"message":         &MessageResponse{Message: message, Sender: sender},
	}

	// The sender never receives its own send; it already sees the message
	// optimistically on submission.
	uc.publisher.PublishExcept(ws.ConversationChannel(conv.ID), senderID, ws.EventNewMessage, payload)
	for _, participantID := range conv.Participants {
		if participantID != senderID {
			uc.publisher.Publish(ws.PersonalChannel(participantID), ws.EventNewMessage, payload)
		}
	}
}

func (uc *ChatUseCase) publishStatusUpdate(conv *entity.Conversation, requesterID, field, status string) {
	payload := map[string]interface{}{
		"conversation_id": conv.ID,
		"field":           field,
		"status":          status,
		"updated_by":      requesterID,
	}
	uc.publisher.PublishExcept(ws.ConversationChannel(conv.ID), requesterID, ws.EventStatusUpdate, payload)
	uc.publisher.Publish(ws.PersonalChannel(conv.OtherParticipant(requesterID)), ws.EventStatusUpdate, payload)
}

func (uc *ChatUseCase) buildConversationResponse(ctx context.Context, conv *entity.Conversation, viewerID string) *ConversationResponse {
	resp := &ConversationResponse{Conversation: conv}

	if campaign, err := uc.campaignRepo.GetByID(ctx, conv.CampaignID); err == nil {
		resp.Campaign = campaign
	} else {
		logger.Warn("conversation %s references missing campaign %s: %v", conv.ID, conv.CampaignID, err)
	}

	if otherID := conv.OtherParticipant(viewerID); otherID != "" {
		if other, err := uc.userRepo.GetByID(ctx, otherID); err == nil {
			resp.OtherUser = other
		} else {
			logger.Warn("conversation %s references missing user %s: %v", conv.ID, otherID, err)
		}
	}

	if count, err := uc.convRepo.CountUnread(ctx, conv.ID, viewerID); err == nil {
		resp.UnreadCount = count
	}

	return resp
}

func (uc *ChatUseCase) lockConversation(id string) func() {
	v, _ := uc.convLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func transitionAllowed(from, to string) bool {
	for _, next := range recruitmentGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}
