package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainEvents(t *testing.T, c *Client) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case raw := <-c.Send:
			var event Event
			require.NoError(t, json.Unmarshal(raw, &event))
			events = append(events, event)
		default:
			return events
		}
	}
}

func eventTypes(events []Event) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestChannelKeys(t *testing.T) {
	assert.Equal(t, "user_u1", PersonalChannel("u1").Key())
	assert.Equal(t, "chat_c1", ConversationChannel("c1").Key())
	assert.NotEqual(t, PersonalChannel("x"), ConversationChannel("x"))
	assert.Equal(t, PersonalChannel("x"), PersonalChannel("x"))
}

func TestRegisterSendsConnectedEvent(t *testing.T) {
	m := NewManager()
	client := NewClient("u1", "User One", nil)

	m.Register(client)

	events := drainEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventConnected, events[0].Type)
	assert.Equal(t, 1, m.ClientCount())

	got, ok := m.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, client, got)

	// Registration auto-subscribes the personal channel.
	m.Publish(PersonalChannel("u1"), EventNewChat, map[string]string{"hello": "there"})
	events = drainEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventNewChat, events[0].Type)
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	m := NewManager()
	first := NewClient("u1", "User One", nil)
	second := NewClient("u1", "User One", nil)

	m.Register(first)
	m.Subscribe(first, ConversationChannel("c1"))
	m.Register(second)

	assert.Equal(t, 1, m.ClientCount())
	current, ok := m.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, second, current)

	// The stale connection is shut down and stops receiving.
	select {
	case <-first.done:
	default:
		t.Fatal("replaced client was not shut down")
	}
	drainEvents(t, first)
	m.Publish(ConversationChannel("c1"), EventNewMessage, nil)
	assert.Empty(t, drainEvents(t, first))

	// The replacement does not inherit room subscriptions.
	drainEvents(t, second)
	m.Publish(ConversationChannel("c1"), EventNewMessage, nil)
	assert.Empty(t, drainEvents(t, second))
}

func TestUnregisterIsIdempotent(t *testing.T) {
	m := NewManager()
	client := NewClient("u1", "User One", nil)

	m.Register(client)
	m.Unregister(client)
	m.Unregister(client)

	assert.Equal(t, 0, m.ClientCount())
	_, ok := m.Lookup("u1")
	assert.False(t, ok)
}

func TestUnregisterNotifiesConversationRooms(t *testing.T) {
	m := NewManager()
	leaver := NewClient("u1", "User One", nil)
	peer := NewClient("u2", "User Two", nil)

	m.Register(leaver)
	m.Register(peer)
	m.Subscribe(leaver, ConversationChannel("c1"))
	m.Subscribe(peer, ConversationChannel("c1"))
	drainEvents(t, leaver)
	drainEvents(t, peer)

	m.Unregister(leaver)

	events := drainEvents(t, peer)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserOffline, events[0].Type)

	data, ok := events[0].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "u1", data["identity_id"])
	assert.Equal(t, "c1", data["conversation_id"])

	// The departed client gets nothing.
	assert.Empty(t, drainEvents(t, leaver))
}

func TestPublishWithNoSubscribersIsDropped(t *testing.T) {
	m := NewManager()

	// Nothing to deliver to; must not panic or block.
	m.Publish(ConversationChannel("ghost"), EventNewMessage, map[string]string{"x": "y"})
}

func TestPublishExceptSkipsOriginator(t *testing.T) {
	m := NewManager()
	sender := NewClient("u1", "User One", nil)
	receiver := NewClient("u2", "User Two", nil)

	m.Register(sender)
	m.Register(receiver)
	m.Subscribe(sender, ConversationChannel("c1"))
	m.Subscribe(receiver, ConversationChannel("c1"))
	drainEvents(t, sender)
	drainEvents(t, receiver)

	m.PublishExcept(ConversationChannel("c1"), "u1", EventNewMessage, nil)

	assert.Empty(t, drainEvents(t, sender))
	assert.Equal(t, []string{EventNewMessage}, eventTypes(drainEvents(t, receiver)))
}

func TestSubscribeRequiresRegistration(t *testing.T) {
	m := NewManager()
	stranger := NewClient("u1", "User One", nil)

	// Not registered: subscribe is refused and publish finds nobody.
	m.Subscribe(stranger, ConversationChannel("c1"))
	m.Publish(ConversationChannel("c1"), EventNewMessage, nil)
	assert.Empty(t, drainEvents(t, stranger))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager()
	client := NewClient("u1", "User One", nil)

	m.Register(client)
	m.Subscribe(client, ConversationChannel("c1"))
	drainEvents(t, client)

	m.Unsubscribe(client, ConversationChannel("c1"))
	m.Publish(ConversationChannel("c1"), EventNewMessage, nil)
	assert.Empty(t, drainEvents(t, client))

	// Personal channel subscription survives.
	m.Publish(PersonalChannel("u1"), EventNewChat, nil)
	assert.Equal(t, []string{EventNewChat}, eventTypes(drainEvents(t, client)))
}

func TestSetStatusLabelBroadcasts(t *testing.T) {
	m := NewManager()
	updater := NewClient("u1", "User One", nil)
	observer := NewClient("u2", "User Two", nil)

	m.Register(updater)
	m.Register(observer)
	drainEvents(t, updater)
	drainEvents(t, observer)

	m.SetStatusLabel(updater, "reviewing offers")

	assert.Equal(t, "reviewing offers", updater.StatusLabel)
	events := drainEvents(t, observer)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserStatusUpdate, events[0].Type)

	entries := m.ListPresence()
	require.Len(t, entries, 2)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	m := NewManager()
	client := NewClient("u1", "User One", nil)
	m.Register(client)

	// Saturate the buffer; the next publish must drop the connection
	// instead of blocking the publisher.
	for i := 0; i < sendBufferSize+4; i++ {
		m.Publish(PersonalChannel("u1"), EventNewMessage, nil)
	}

	_, ok := m.Lookup("u1")
	assert.False(t, ok)
}

func TestShutdownClosesEverything(t *testing.T) {
	m := NewManager()
	a := NewClient("u1", "User One", nil)
	b := NewClient("u2", "User Two", nil)
	m.Register(a)
	m.Register(b)

	m.Shutdown()

	assert.Equal(t, 0, m.ClientCount())
	for _, c := range []*Client{a, b} {
		select {
		case <-c.done:
		default:
			t.Fatalf("client %s not shut down", c.UserID)
		}
	}
}
