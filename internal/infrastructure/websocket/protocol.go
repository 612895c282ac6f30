package websocket

import (
	"context"
	"encoding/json"

	"creatorlink/pkg/logger"
)

// Inbound frame types.
const (
	FramePing         = "ping"
	FrameJoinChat     = "join_chat"
	FrameLeaveChat    = "leave_chat"
	FrameTypingStart  = "typing_start"
	FrameTypingStop   = "typing_stop"
	FrameMessageRead  = "message_read"
	FrameUpdateStatus = "update_status"
)

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Status         string `json:"status,omitempty"`
}

// EventSink is the slice of the chat service the socket layer needs. The
// service validates participants and persists receipts; the manager only
// routes.
type EventSink interface {
	VerifyParticipant(ctx context.Context, userID, conversationID string) error
	HandleTyping(ctx context.Context, userID, conversationID string, typing bool)
	MarkMessageRead(ctx context.Context, readerID, conversationID, messageID string) error
}

// HandleClientMessage decodes and dispatches one inbound frame.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Warn("invalid frame from user %s: %v", client.UserID, err)
		m.sendError(client, "invalid message format")
		return
	}

	ctx := context.Background()

	switch frame.Type {
	case FramePing:
		m.sendEvent(client, "pong", map[string]string{"status": "alive"})

	case FrameJoinChat:
		m.handleJoinChat(ctx, client, frame.ConversationID)

	case FrameLeaveChat:
		m.handleLeaveChat(client, frame.ConversationID)

	case FrameTypingStart:
		m.events.HandleTyping(ctx, client.UserID, frame.ConversationID, true)

	case FrameTypingStop:
		m.events.HandleTyping(ctx, client.UserID, frame.ConversationID, false)

	case FrameMessageRead:
		if err := m.events.MarkMessageRead(ctx, client.UserID, frame.ConversationID, frame.MessageID); err != nil {
			m.sendError(client, err.Error())
		}

	case FrameUpdateStatus:
		m.SetStatusLabel(client, frame.Status)

	default:
		logger.Warn("unknown frame type %q from user %s", frame.Type, client.UserID)
		m.sendError(client, "unknown message type")
	}
}

func (m *Manager) handleJoinChat(ctx context.Context, client *Client, conversationID string) {
	if conversationID == "" {
		m.sendError(client, "missing conversation_id")
		return
	}
	if err := m.events.VerifyParticipant(ctx, client.UserID, conversationID); err != nil {
		m.sendError(client, err.Error())
		return
	}

	ch := ConversationChannel(conversationID)
	m.Subscribe(client, ch)

	m.PublishExcept(ch, client.UserID, EventUserOnline, map[string]interface{}{
		"identity_id":     client.UserID,
		"display_name":    client.DisplayName,
		"conversation_id": conversationID,
	})
}

func (m *Manager) handleLeaveChat(client *Client, conversationID string) {
	if conversationID == "" {
		m.sendError(client, "missing conversation_id")
		return
	}

	ch := ConversationChannel(conversationID)
	m.Unsubscribe(client, ch)

	m.PublishExcept(ch, client.UserID, EventUserOffline, map[string]interface{}{
		"identity_id":     client.UserID,
		"display_name":    client.DisplayName,
		"conversation_id": conversationID,
	})
}

func (m *Manager) sendError(client *Client, message string) {
	m.sendEvent(client, EventError, map[string]string{
		"error":   message,
		"user_id": client.UserID,
	})
}
