package websocket

import "fmt"

// ChannelKind discriminates the two logical pub/sub destinations.
type ChannelKind int

const (
	// ChannelPersonal is a per-user channel, auto-subscribed on connect.
	// Carries cross-cutting notifications such as new_chat.
	ChannelPersonal ChannelKind = iota
	// ChannelConversation is a per-conversation room, joined and left
	// explicitly as the client enters and leaves a chat screen.
	ChannelConversation
)

// Channel is a typed channel identifier. Using a tagged value instead of
// concatenated strings keeps routing mistakes out of the call sites.
type Channel struct {
	Kind ChannelKind
	ID   string
}

func PersonalChannel(userID string) Channel {
	return Channel{Kind: ChannelPersonal, ID: userID}
}

func ConversationChannel(conversationID string) Channel {
	return Channel{Kind: ChannelConversation, ID: conversationID}
}

// Key returns the wire-level room name for the channel.
func (c Channel) Key() string {
	switch c.Kind {
	case ChannelPersonal:
		return fmt.Sprintf("user_%s", c.ID)
	case ChannelConversation:
		return fmt.Sprintf("chat_%s", c.ID)
	}
	return c.ID
}
