package websocket

import (
	"encoding/json"
	"sync"

	"civicwatch/models"

	"github.com/apex/log"
)

// Hub manages WebSocket connections and topic-partitioned broadcasting.
// Topics are exactly the two report types; a session may be subscribed to
// zero, one or both. Delivery is fire-and-forget: a session that cannot
// keep up is dropped, a disconnected session simply misses events.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Topic subscriptions: topic -> set of clients
	topics map[string]map[*Client]bool

	mutex  sync.RWMutex
	closed bool
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		topics: map[string]map[*Client]bool{
			models.TypeHero:       make(map[*Client]bool),
			models.TypeCorruption: make(map[*Client]bool),
		},
	}
}

// Stop shuts the hub down and disconnects every client. Clients arriving
// afterwards are refused by AddClient.
func (h *Hub) Stop() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	for _, members := range h.topics {
		for client := range members {
			delete(members, client)
		}
	}
}

// AddClient registers a session. Registration completes before AddClient
// returns, so a subscribe request sent right after the upgrade always finds
// the client. Returns false once the hub has been stopped.
func (h *Hub) AddClient(client *Client) bool {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return false
	}
	h.clients[client] = true
	total := len(h.clients)
	h.mutex.Unlock()
	log.Infof("Client %s connected. Total clients: %d", client.ID, total)
	return true
}

// RemoveClient drops the client and releases all its topic subscriptions
// immediately, so no lingering membership survives a disconnect.
func (h *Hub) RemoveClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		for _, members := range h.topics {
			delete(members, client)
		}
		close(client.send)
	}
	total := len(h.clients)
	h.mutex.Unlock()
	log.Infof("Client %s disconnected. Total clients: %d", client.ID, total)
}

// Subscribe adds the client to a feed topic. Unknown topics are silently
// ignored so that drifting clients cannot error the connection.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		return
	}
	if !h.clients[client] {
		return
	}
	members[client] = true
	log.Infof("Client %s subscribed to %s feed", client.ID, topic)
}

// Unsubscribe removes the client from a feed topic. Unknown topics are a
// no-op.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if members, ok := h.topics[topic]; ok {
		delete(members, client)
	}
}

// PublishToTopic delivers an event to every session currently subscribed to
// the topic.
func (h *Hub) PublishToTopic(topic string, message models.BroadcastMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.WithError(err).Error("failed to marshal broadcast message")
		return
	}

	h.mutex.RLock()
	var dropped []*Client
	for client := range h.topics[topic] {
		select {
		case client.send <- data:
		default:
			dropped = append(dropped, client)
		}
	}
	h.mutex.RUnlock()

	h.dropClients(dropped)
}

// PublishGlobal delivers an event to every connected session regardless of
// subscriptions.
func (h *Hub) PublishGlobal(message models.BroadcastMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.WithError(err).Error("failed to marshal broadcast message")
		return
	}

	h.mutex.RLock()
	var dropped []*Client
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			dropped = append(dropped, client)
		}
	}
	h.mutex.RUnlock()

	h.dropClients(dropped)
}

// dropClients removes clients whose send buffers were full. Sends only ever
// happen under the read lock and closes under the write lock, so a dropped
// client can never see a send after its channel closes.
func (h *Hub) dropClients(dropped []*Client) {
	for _, client := range dropped {
		log.Warnf("Dropping slow client %s", client.ID)
		h.RemoveClient(client)
	}
}

// ConnectedClients returns the number of live sessions.
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// TopicSubscribers returns the number of sessions subscribed to a topic.
func (h *Hub) TopicSubscribers(topic string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.topics[topic])
}
