package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"creatorlink/pkg/logger"
)

// Outbound event names. These are the wire contract with connected clients;
// delivery is best effort and nothing here is persisted.
const (
	EventConnected          = "connected"
	EventNewChat            = "new_chat"
	EventNewMessage         = "new_message"
	EventMessageReadReceipt = "message_read_receipt"
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
	EventUserTyping         = "user_typing"
	EventUserStoppedTyping  = "user_stopped_typing"
	EventUserStatusUpdate   = "user_status_update"
	EventStatusUpdate       = "conversation_status_update"
	EventError              = "error"
)

// Event is the outbound frame envelope.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// PresenceEntry is a snapshot of one connected identity.
type PresenceEntry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	StatusLabel string    `json:"status_label,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Manager is the connection registry and room router. It tracks at most
// one live client per identity and fans events out to channel subscribers.
// All state is process-local; clients resynchronize from the persisted log
// on reconnect.
type Manager struct {
	mu          sync.RWMutex
	clients     map[string]*Client              // userID -> current client
	rooms       map[Channel]map[string]*Client  // channel -> userID -> client
	memberships map[*Client]map[Channel]struct{}

	events EventSink
}

func NewManager() *Manager {
	return &Manager{
		clients:     make(map[string]*Client),
		rooms:       make(map[Channel]map[string]*Client),
		memberships: make(map[*Client]map[Channel]struct{}),
	}
}

// BindEvents attaches the handler for inbound client frames. Must be called
// before the first connection is registered.
func (m *Manager) BindEvents(sink EventSink) {
	m.events = sink
}

// Register tracks the client and auto-subscribes its personal channel. An
// existing connection for the same identity is replaced: its events stop
// routing immediately and the stale socket is closed after the swap.
func (m *Manager) Register(client *Client) {
	var previous *Client

	m.mu.Lock()
	if existing, ok := m.clients[client.UserID]; ok && existing != client {
		previous = existing
		m.removeLocked(existing)
	}
	m.clients[client.UserID] = client
	m.memberships[client] = make(map[Channel]struct{})
	m.subscribeLocked(client, PersonalChannel(client.UserID))
	m.mu.Unlock()

	if previous != nil {
		previous.shutdown()
		logger.Info("replaced connection for user %s", client.UserID)
	}

	m.sendEvent(client, EventConnected, map[string]interface{}{
		"identity_id": client.UserID,
		"timestamp":   client.ConnectedAt.UTC().Format(time.RFC3339),
	})
}

// Unregister drops the client if it is still the identity's current
// connection. A departure notice goes to every conversation room it was
// in. Calling it for an already-removed client is a no-op.
func (m *Manager) Unregister(client *Client) {
	m.mu.Lock()
	current, ok := m.clients[client.UserID]
	if !ok || current != client {
		m.mu.Unlock()
		client.shutdown()
		return
	}

	var left []Channel
	for ch := range m.memberships[client] {
		if ch.Kind == ChannelConversation {
			left = append(left, ch)
		}
	}
	m.removeLocked(client)
	delete(m.clients, client.UserID)
	m.mu.Unlock()

	client.shutdown()

	for _, ch := range left {
		m.PublishExcept(ch, client.UserID, EventUserOffline, map[string]interface{}{
			"identity_id":     client.UserID,
			"display_name":    client.DisplayName,
			"conversation_id": ch.ID,
		})
	}
	logger.Info("client unregistered: %s", client.UserID)
}

// Lookup returns the identity's current connection, if any.
func (m *Manager) Lookup(userID string) (*Client, bool) {
	m.mu.RLock()
	client, ok := m.clients[userID]
	m.mu.RUnlock()
	return client, ok
}

// ClientCount reports how many identities are currently connected.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// ListPresence snapshots all connected identities.
func (m *Manager) ListPresence() []PresenceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]PresenceEntry, 0, len(m.clients))
	for _, client := range m.clients {
		entries = append(entries, PresenceEntry{
			UserID:      client.UserID,
			DisplayName: client.DisplayName,
			StatusLabel: client.StatusLabel,
			ConnectedAt: client.ConnectedAt,
		})
	}
	return entries
}

// Subscribe adds the client to the channel. Already-subscribed is a no-op.
func (m *Manager) Subscribe(client *Client, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.clients[client.UserID]; !ok || current != client {
		return
	}
	m.subscribeLocked(client, ch)
}

// Unsubscribe removes the client from the channel. Idempotent.
func (m *Manager) Unsubscribe(client *Client, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[ch]; ok {
		if room[client.UserID] == client {
			delete(room, client.UserID)
			if len(room) == 0 {
				delete(m.rooms, ch)
			}
		}
	}
	if members, ok := m.memberships[client]; ok {
		delete(members, ch)
	}
}

// Publish delivers the event to every current subscriber of the channel.
// Fire and forget: with nobody subscribed the event is dropped and the
// persisted state remains the source of truth.
func (m *Manager) Publish(ch Channel, event string, payload interface{}) {
	m.PublishExcept(ch, "", event, payload)
}

// PublishExcept is Publish minus one user, used to skip echoing an event
// back to its originator.
func (m *Manager) PublishExcept(ch Channel, excludeUserID string, event string, payload interface{}) {
	raw, err := marshalEvent(event, payload)
	if err != nil {
		logger.Error("failed to marshal %s event: %v", event, err)
		return
	}

	m.mu.RLock()
	targets := make([]*Client, 0, len(m.rooms[ch]))
	for userID, client := range m.rooms[ch] {
		if excludeUserID != "" && userID == excludeUserID {
			continue
		}
		targets = append(targets, client)
	}
	m.mu.RUnlock()

	for _, client := range targets {
		m.trySend(client, raw)
	}
}

// SetStatusLabel updates the client's presence label and broadcasts it to
// everyone currently connected.
func (m *Manager) SetStatusLabel(client *Client, label string) {
	m.mu.Lock()
	if current, ok := m.clients[client.UserID]; !ok || current != client {
		m.mu.Unlock()
		return
	}
	client.StatusLabel = label
	targets := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		targets = append(targets, c)
	}
	m.mu.Unlock()

	raw, err := marshalEvent(EventUserStatusUpdate, map[string]interface{}{
		"identity_id": client.UserID,
		"status":      label,
	})
	if err != nil {
		return
	}
	for _, c := range targets {
		m.trySend(c, raw)
	}
}

// Shutdown closes every tracked connection and clears all state.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clients = make(map[string]*Client)
	m.rooms = make(map[Channel]map[string]*Client)
	m.memberships = make(map[*Client]map[Channel]struct{})
	m.mu.Unlock()

	for _, client := range clients {
		client.shutdown()
	}
}

func (m *Manager) subscribeLocked(client *Client, ch Channel) {
	room := m.rooms[ch]
	if room == nil {
		room = make(map[string]*Client)
		m.rooms[ch] = room
	}
	room[client.UserID] = client

	members := m.memberships[client]
	if members == nil {
		members = make(map[Channel]struct{})
		m.memberships[client] = members
	}
	members[ch] = struct{}{}
}

// removeLocked strips the client from every room without touching the
// clients map. Caller holds the write lock.
func (m *Manager) removeLocked(client *Client) {
	for ch := range m.memberships[client] {
		if room, ok := m.rooms[ch]; ok {
			if room[client.UserID] == client {
				delete(room, client.UserID)
				if len(room) == 0 {
					delete(m.rooms, ch)
				}
			}
		}
	}
	delete(m.memberships, client)
}

func (m *Manager) sendEvent(client *Client, event string, payload interface{}) {
	raw, err := marshalEvent(event, payload)
	if err != nil {
		logger.Error("failed to marshal %s event: %v", event, err)
		return
	}
	m.trySend(client, raw)
}

// trySend enqueues without blocking. A subscriber that cannot keep up is
// dropped rather than stalling the publisher.
func (m *Manager) trySend(client *Client, raw []byte) {
	select {
	case <-client.done:
	case client.Send <- raw:
	default:
		logger.Warn("send buffer full for user %s, dropping connection", client.UserID)
		m.Unregister(client)
	}
}

func marshalEvent(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(Event{
		Type:      event,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
