package entity

import "time"

// Connection status gates whether new messages may be sent. Conversations
// are never hard-deleted, only archived or blocked.
const (
	ConnectionActive   = "active"
	ConnectionArchived = "archived"
	ConnectionBlocked  = "blocked"
)

// Recruitment status tracks the negotiation phase, independent of message
// content. Transitions are participant-driven; there is no automation.
const (
	RecruitmentDiscussing = "discussing"
	RecruitmentOfferSent  = "offer_sent"
	RecruitmentAccepted   = "accepted"
	RecruitmentDeclined   = "declined"
	RecruitmentCompleted  = "completed"
)

// Conversation is the chat aggregate between one brand and one creator,
// scoped to a single campaign. At most one conversation exists per
// (campaign, participant pair); the repository enforces that.
type Conversation struct {
	ID           string   `json:"id" firestore:"id"`
	CampaignID   string   `json:"campaign_id" firestore:"campaignId"`
	Participants []string `json:"participants" firestore:"participants"` // exactly two: brand and creator
	BrandID      string   `json:"brand_id" firestore:"brandId"`
	CreatorID    string   `json:"creator_id" firestore:"creatorId"`
	InitiatorID  string   `json:"initiator_id" firestore:"initiatorId"`

	// LastMessageID is a weak reference: the message may be removed by an
	// administrative action without cascading here.
	LastMessageID  string    `json:"last_message_id,omitempty" firestore:"lastMessageId,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at" firestore:"lastActivityAt"`

	ConnectionStatus  string `json:"connection_status" firestore:"connectionStatus"`
	RecruitmentStatus string `json:"recruitment_status" firestore:"recruitmentStatus"`

	// MessageSeq is a per-conversation counter assigned to each message to
	// break creation-timestamp ties. Mutated only under the conversation's
	// write lock.
	MessageSeq int64 `json:"-" firestore:"messageSeq"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func ValidConnectionStatus(s string) bool {
	switch s {
	case ConnectionActive, ConnectionArchived, ConnectionBlocked:
		return true
	}
	return false
}

func ValidRecruitmentStatus(s string) bool {
	switch s {
	case RecruitmentDiscussing, RecruitmentOfferSent, RecruitmentAccepted,
		RecruitmentDeclined, RecruitmentCompleted:
		return true
	}
	return false
}
