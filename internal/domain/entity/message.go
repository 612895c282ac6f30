package entity

import "time"

const (
	MessageKindText   = "text"
	MessageKindOffer  = "offer"
	MessageKindSystem = "system"
)

const (
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryRead      = "read"
)

// System message kinds, set only when Kind == MessageKindSystem.
const (
	SystemChatStarted   = "chat_started"
	SystemOfferSent     = "offer_sent"
	SystemOfferAccepted = "offer_accepted"
	SystemOfferDeclined = "offer_declined"
)

// SystemSenderID marks messages the system injects itself.
const SystemSenderID = "system"

// MaxContentLength is the upper bound on message content, in runes.
const MaxContentLength = 2000

// OfferPayload carries the terms of an offer message. Present iff the
// message kind is "offer".
type OfferPayload struct {
	Amount      float64    `json:"amount" firestore:"amount"`
	Currency    string     `json:"currency" firestore:"currency"`
	Description string     `json:"description,omitempty" firestore:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty" firestore:"deadline,omitempty"`
}

// Message is an append-only entry owned by exactly one conversation. The
// core mutates only DeliveryStatus and ReadReceipts after creation.
type Message struct {
	ID             string               `json:"id" firestore:"id"`
	ConversationID string               `json:"conversation_id" firestore:"conversationId"`
	SenderID       string               `json:"sender_id" firestore:"senderId"`
	Content        string               `json:"content" firestore:"content"`
	Kind           string               `json:"kind" firestore:"kind"`
	Offer          *OfferPayload        `json:"offer,omitempty" firestore:"offer,omitempty"`
	SystemKind     string               `json:"system_kind,omitempty" firestore:"systemKind,omitempty"`
	DeliveryStatus string               `json:"delivery_status" firestore:"deliveryStatus"`
	ReadReceipts   map[string]time.Time `json:"read_receipts" firestore:"readReceipts"` // readerID -> readAt
	Seq            int64                `json:"seq" firestore:"seq"`
	CreatedAt      time.Time            `json:"created_at" firestore:"createdAt"`
}

// ReadBy reports whether readerID has a receipt on this message.
func (m *Message) ReadBy(readerID string) bool {
	_, ok := m.ReadReceipts[readerID]
	return ok
}

// UnreadFor reports whether the message counts toward readerID's unread
// total: sent by someone else and not yet read by them. System messages
// never count.
func (m *Message) UnreadFor(readerID string) bool {
	if m.Kind == MessageKindSystem || m.SenderID == readerID {
		return false
	}
	return !m.ReadBy(readerID)
}
