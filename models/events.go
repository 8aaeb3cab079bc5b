package models

import "time"

// Broadcast event types pushed to websocket clients.
const (
	EventFeedUpdate         = "feed_update"
	EventAppreciationUpdate = "appreciation_update"
)

// BroadcastMessage is the envelope for every message pushed to websocket
// clients.
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// AppreciationUpdate is the payload of an appreciation_update event.
type AppreciationUpdate struct {
	ReportID int64 `json:"report_id"`
	Count    int   `json:"count"`
}

// SubscriptionRequest is what a connected client sends to join or leave a
// feed topic.
type SubscriptionRequest struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ConnectedClients int    `json:"connected_clients"`
}
