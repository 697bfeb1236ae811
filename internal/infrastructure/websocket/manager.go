package websocket

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Manager is the connection registry and the in-memory half of the room
// directory: an arena of connection handles, an index from identity to its
// live handles, and per-room subscriber lists kept in registration order.
// There are no direct references between connection and room objects;
// cleanup is removing a handle id from these maps.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client            // handle -> client
	byUser  map[string]map[string]*Client // userID -> handle -> client
	rooms   map[string][]*Client          // roomID -> subscribers, registration order
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		byUser:  make(map[string]map[string]*Client),
		rooms:   make(map[string][]*Client),
	}
}

// Register assigns the client a handle and adds it to the arena. A single
// identity may register any number of concurrent clients.
func (m *Manager) Register(client *Client) string {
	handle := uuid.New().String()
	client.Handle = handle

	m.mu.Lock()
	m.clients[handle] = client
	if m.byUser[client.UserID] == nil {
		m.byUser[client.UserID] = make(map[string]*Client)
	}
	m.byUser[client.UserID][handle] = client
	m.mu.Unlock()

	log.Printf("WebSocket: client %s registered for user %s", handle, client.UserID)
	return handle
}

// Unregister removes the handle from the arena and from every room it was
// subscribed to, and closes its send channel. Safe to call more than once.
func (m *Manager) Unregister(handle string) {
	m.mu.Lock()
	client, ok := m.clients[handle]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, handle)
	if handles := m.byUser[client.UserID]; handles != nil {
		delete(handles, handle)
		if len(handles) == 0 {
			delete(m.byUser, client.UserID)
		}
	}
	for roomID, subs := range m.rooms {
		m.rooms[roomID] = removeClient(subs, handle)
		if len(m.rooms[roomID]) == 0 {
			delete(m.rooms, roomID)
		}
	}
	m.mu.Unlock()

	close(client.Send)
	log.Printf("WebSocket: client %s unregistered for user %s", handle, client.UserID)
}

// Subscribe attaches a registered handle to a room's subscriber list.
// Participant authorization happens at the usecase layer before this call.
// Subscribing twice is a no-op.
func (m *Manager) Subscribe(handle, roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[handle]
	if !ok {
		return false
	}
	for _, sub := range m.rooms[roomID] {
		if sub.Handle == handle {
			return true
		}
	}
	m.rooms[roomID] = append(m.rooms[roomID], client)
	return true
}

// Unsubscribe detaches a handle from a room.
func (m *Manager) Unsubscribe(handle, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[roomID] = removeClient(m.rooms[roomID], handle)
	if len(m.rooms[roomID]) == 0 {
		delete(m.rooms, roomID)
	}
}

// SubscribersOf returns the room's current subscribers in registration order.
func (m *Manager) SubscribersOf(roomID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := m.rooms[roomID]
	out := make([]*Client, len(subs))
	copy(out, subs)
	return out
}

// BroadcastToRoom pushes a payload onto the send channel of every subscriber
// of the room, sender's other tabs included. Delivery is best-effort: a
// subscriber whose buffer is full is treated as disconnected and dropped so
// that it can never block the others.
func (m *Manager) BroadcastToRoom(roomID string, payload []byte) {
	for _, client := range m.SubscribersOf(roomID) {
		m.deliver(client, payload)
	}
}

// SendToIdentity pushes a payload to every registered connection of one
// identity, independent of room subscriptions. Used for read receipts, where
// the original sender may not currently be subscribed to the room.
func (m *Manager) SendToIdentity(userID string, payload []byte) {
	m.mu.RLock()
	targets := make([]*Client, 0, len(m.byUser[userID]))
	for _, client := range m.byUser[userID] {
		targets = append(targets, client)
	}
	m.mu.RUnlock()

	for _, client := range targets {
		m.deliver(client, payload)
	}
}

// Send pushes a payload to a single handle through the membership-checked
// delivery path. A handle that has already been unregistered is skipped, so
// callers never race the channel close.
func (m *Manager) Send(handle string, payload []byte) {
	m.mu.RLock()
	client, ok := m.clients[handle]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.deliver(client, payload)
}

// ConnectionCount reports the number of live handles for one identity.
func (m *Manager) ConnectionCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

// deliver performs a non-blocking send while holding the read lock, so the
// channel cannot be closed by a concurrent Unregister mid-send. Unregister
// closes the channel only after its exclusive critical section, by which
// point the handle is gone from the arena and the membership check fails.
func (m *Manager) deliver(client *Client, payload []byte) {
	full := false

	m.mu.RLock()
	if _, ok := m.clients[client.Handle]; ok {
		select {
		case client.Send <- payload:
		default:
			full = true
		}
	}
	m.mu.RUnlock()

	if full {
		log.Printf("WebSocket: client %s (%s) send buffer full, dropping connection", client.Handle, client.UserID)
		m.Unregister(client.Handle)
	}
}

func removeClient(subs []*Client, handle string) []*Client {
	for i, sub := range subs {
		if sub.Handle == handle {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
