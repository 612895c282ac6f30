package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageUnreadFor(t *testing.T) {
	msg := &Message{
		ID:       "m1",
		SenderID: "u1",
		Kind:     MessageKindText,
	}

	assert.False(t, msg.UnreadFor("u1"), "sender never has unread on own message")
	assert.True(t, msg.UnreadFor("u2"))

	msg.ReadReceipts = map[string]time.Time{"u2": time.Now()}
	assert.False(t, msg.UnreadFor("u2"))
	assert.True(t, msg.ReadBy("u2"))
	assert.False(t, msg.ReadBy("u3"))
}

func TestSystemMessageNeverUnread(t *testing.T) {
	msg := &Message{
		ID:         "m1",
		SenderID:   SystemSenderID,
		Kind:       MessageKindSystem,
		SystemKind: SystemChatStarted,
	}

	assert.False(t, msg.UnreadFor("u1"))
	assert.False(t, msg.UnreadFor("u2"))
}

func TestConversationParticipants(t *testing.T) {
	conv := &Conversation{
		Participants: []string{"brand-1", "creator-1"},
	}

	assert.True(t, conv.HasParticipant("brand-1"))
	assert.False(t, conv.HasParticipant("outsider"))
	assert.Equal(t, "creator-1", conv.OtherParticipant("brand-1"))
	assert.Equal(t, "brand-1", conv.OtherParticipant("creator-1"))
}

func TestStatusValidators(t *testing.T) {
	for _, s := range []string{ConnectionActive, ConnectionArchived, ConnectionBlocked} {
		assert.True(t, ValidConnectionStatus(s))
	}
	assert.False(t, ValidConnectionStatus("deleted"))

	for _, s := range []string{RecruitmentDiscussing, RecruitmentOfferSent, RecruitmentAccepted, RecruitmentDeclined, RecruitmentCompleted} {
		assert.True(t, ValidRecruitmentStatus(s))
	}
	assert.False(t, ValidRecruitmentStatus("ghosted"))
}
