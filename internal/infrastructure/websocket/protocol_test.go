package websocket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorlink/pkg/errors"
)

type recordingSink struct {
	participants map[string]map[string]bool // conversationID -> userID -> allowed
	typing       []string
	readCalls    []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{participants: make(map[string]map[string]bool)}
}

func (s *recordingSink) allow(conversationID, userID string) {
	if s.participants[conversationID] == nil {
		s.participants[conversationID] = make(map[string]bool)
	}
	s.participants[conversationID][userID] = true
}

func (s *recordingSink) VerifyParticipant(ctx context.Context, userID, conversationID string) error {
	if s.participants[conversationID][userID] {
		return nil
	}
	return errors.Forbidden("You are not a participant in this conversation", nil)
}

func (s *recordingSink) HandleTyping(ctx context.Context, userID, conversationID string, typing bool) {
	state := "stop"
	if typing {
		state = "start"
	}
	s.typing = append(s.typing, userID+":"+conversationID+":"+state)
}

func (s *recordingSink) MarkMessageRead(ctx context.Context, readerID, conversationID, messageID string) error {
	if messageID == "missing" {
		return errors.NotFound("Message", nil)
	}
	s.readCalls = append(s.readCalls, readerID+":"+messageID)
	return nil
}

func setupProtocolTest(t *testing.T) (*Manager, *recordingSink, *Client) {
	t.Helper()

	m := NewManager()
	sink := newRecordingSink()
	m.BindEvents(sink)

	client := NewClient("u1", "User One", nil)
	m.Register(client)
	drainEvents(t, client)
	return m, sink, client
}

func TestHandleClientMessagePing(t *testing.T) {
	m, _, client := setupProtocolTest(t)

	m.HandleClientMessage(client, []byte(`{"type":"ping"}`))

	events := drainEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, "pong", events[0].Type)
}

func TestHandleClientMessageMalformed(t *testing.T) {
	m, _, client := setupProtocolTest(t)

	m.HandleClientMessage(client, []byte(`{not json`))
	m.HandleClientMessage(client, []byte(`{"type":"teleport"}`))

	events := drainEvents(t, client)
	require.Len(t, events, 2)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
}

func TestJoinChatVerifiesMembership(t *testing.T) {
	m, sink, client := setupProtocolTest(t)

	// Not a participant: refused with an error frame, no subscription.
	m.HandleClientMessage(client, []byte(`{"type":"join_chat","conversation_id":"c1"}`))
	events := drainEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)

	m.Publish(ConversationChannel("c1"), EventNewMessage, nil)
	assert.Empty(t, drainEvents(t, client))

	// Allowed: subscribed and the peer sees the arrival.
	sink.allow("c1", "u1")
	sink.allow("c1", "u2")
	peer := NewClient("u2", "User Two", nil)
	m.Register(peer)
	drainEvents(t, peer)
	m.HandleClientMessage(peer, []byte(`{"type":"join_chat","conversation_id":"c1"}`))

	m.HandleClientMessage(client, []byte(`{"type":"join_chat","conversation_id":"c1"}`))
	peerEvents := drainEvents(t, peer)
	require.Len(t, peerEvents, 1)
	assert.Equal(t, EventUserOnline, peerEvents[0].Type)

	m.Publish(ConversationChannel("c1"), EventNewMessage, nil)
	assert.Equal(t, []string{EventNewMessage}, eventTypes(drainEvents(t, client)))
}

func TestLeaveChatNotifiesRoom(t *testing.T) {
	m, sink, client := setupProtocolTest(t)
	sink.allow("c1", "u1")
	sink.allow("c1", "u2")

	peer := NewClient("u2", "User Two", nil)
	m.Register(peer)
	m.HandleClientMessage(client, []byte(`{"type":"join_chat","conversation_id":"c1"}`))
	m.HandleClientMessage(peer, []byte(`{"type":"join_chat","conversation_id":"c1"}`))
	drainEvents(t, client)
	drainEvents(t, peer)

	m.HandleClientMessage(client, []byte(`{"type":"leave_chat","conversation_id":"c1"}`))

	events := drainEvents(t, peer)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserOffline, events[0].Type)

	m.Publish(ConversationChannel("c1"), EventNewMessage, nil)
	assert.Empty(t, drainEvents(t, client))
}

func TestTypingFramesReachSink(t *testing.T) {
	m, sink, client := setupProtocolTest(t)

	m.HandleClientMessage(client, []byte(`{"type":"typing_start","conversation_id":"c1"}`))
	m.HandleClientMessage(client, []byte(`{"type":"typing_stop","conversation_id":"c1"}`))

	assert.Equal(t, []string{"u1:c1:start", "u1:c1:stop"}, sink.typing)
}

func TestMessageReadFrame(t *testing.T) {
	m, sink, client := setupProtocolTest(t)

	m.HandleClientMessage(client, []byte(`{"type":"message_read","conversation_id":"c1","message_id":"m1"}`))
	assert.Equal(t, []string{"u1:m1"}, sink.readCalls)
	assert.Empty(t, drainEvents(t, client))

	// A failing mark comes back as an error frame.
	m.HandleClientMessage(client, []byte(`{"type":"message_read","conversation_id":"c1","message_id":"missing"}`))
	events := drainEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
}

func TestUpdateStatusFrame(t *testing.T) {
	m, _, client := setupProtocolTest(t)

	m.HandleClientMessage(client, []byte(`{"type":"update_status","status":"negotiating"}`))

	assert.Equal(t, "negotiating", client.StatusLabel)
	events := drainEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserStatusUpdate, events[0].Type)
}
