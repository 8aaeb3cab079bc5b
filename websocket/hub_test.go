package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"civicwatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, buffer int) *Client {
	c := &Client{ID: "test-" + time.Now().Format("150405.000000000"), hub: hub, send: make(chan []byte, buffer)}
	hub.AddClient(c)
	return c
}

func receive(t *testing.T, c *Client) models.BroadcastMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg models.BroadcastMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected a message, got none")
		return models.BroadcastMessage{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("expected no message, got %s", string(data))
	default:
	}
}

func feedEvent() models.BroadcastMessage {
	return models.BroadcastMessage{
		Type:      models.EventFeedUpdate,
		Data:      map[string]string{"title": "x"},
		Timestamp: time.Now().UTC(),
	}
}

func TestTopicIsolation(t *testing.T) {
	h := NewHub()
	heroClient := newTestClient(h, 4)
	corruptionClient := newTestClient(h, 4)

	h.Subscribe(heroClient, models.TypeHero)
	h.Subscribe(corruptionClient, models.TypeCorruption)

	h.PublishToTopic(models.TypeCorruption, feedEvent())

	assertNoMessage(t, heroClient)
	msg := receive(t, corruptionClient)
	assert.Equal(t, models.EventFeedUpdate, msg.Type)
}

func TestGlobalReachesAllSessions(t *testing.T) {
	h := NewHub()
	heroClient := newTestClient(h, 4)
	unsubscribed := newTestClient(h, 4)

	h.Subscribe(heroClient, models.TypeHero)

	update := models.BroadcastMessage{
		Type:      models.EventAppreciationUpdate,
		Data:      models.AppreciationUpdate{ReportID: 5, Count: 3},
		Timestamp: time.Now().UTC(),
	}
	h.PublishGlobal(update)

	assert.Equal(t, models.EventAppreciationUpdate, receive(t, heroClient).Type)
	assert.Equal(t, models.EventAppreciationUpdate, receive(t, unsubscribed).Type)
}

func TestSubscribeUnknownTopicIsNoOp(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)

	h.Subscribe(c, "weather")

	assert.Equal(t, 0, h.TopicSubscribers("weather"))
	assert.Equal(t, 0, h.TopicSubscribers(models.TypeHero))
}

func TestBothTopicsSimultaneously(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)

	h.Subscribe(c, models.TypeHero)
	h.Subscribe(c, models.TypeCorruption)

	h.PublishToTopic(models.TypeHero, feedEvent())
	h.PublishToTopic(models.TypeCorruption, feedEvent())

	receive(t, c)
	receive(t, c)
	assertNoMessage(t, c)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)

	h.Subscribe(c, models.TypeHero)
	h.Unsubscribe(c, models.TypeHero)

	h.PublishToTopic(models.TypeHero, feedEvent())
	assertNoMessage(t, c)
}

func TestDisconnectReleasesSubscriptions(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)

	h.Subscribe(c, models.TypeHero)
	h.Subscribe(c, models.TypeCorruption)
	require.Equal(t, 1, h.TopicSubscribers(models.TypeHero))

	h.RemoveClient(c)

	assert.Equal(t, 0, h.ConnectedClients())
	assert.Equal(t, 0, h.TopicSubscribers(models.TypeHero))
	assert.Equal(t, 0, h.TopicSubscribers(models.TypeCorruption))
}

func TestSlowClientIsDropped(t *testing.T) {
	h := NewHub()
	slow := newTestClient(h, 1)
	healthy := newTestClient(h, 4)

	h.Subscribe(slow, models.TypeHero)
	h.Subscribe(healthy, models.TypeHero)

	// Fill the slow client's buffer, then publish once more.
	h.PublishToTopic(models.TypeHero, feedEvent())
	h.PublishToTopic(models.TypeHero, feedEvent())

	assert.Equal(t, 1, h.ConnectedClients(), "slow client should be gone")
	assert.Equal(t, 1, h.TopicSubscribers(models.TypeHero))

	// The healthy client saw both events.
	receive(t, healthy)
	receive(t, healthy)
}

func TestSubscribeAfterDisconnectIsIgnored(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)
	h.RemoveClient(c)

	h.Subscribe(c, models.TypeHero)
	assert.Equal(t, 0, h.TopicSubscribers(models.TypeHero))
}

func TestSubscribeRightAfterAddClientSticks(t *testing.T) {
	h := NewHub()

	// Registration is synchronous, so a subscribe racing in immediately
	// after AddClient returns must always take effect.
	for i := 0; i < 100; i++ {
		c := &Client{ID: "burst", hub: h, send: make(chan []byte, 1)}
		require.True(t, h.AddClient(c))
		h.Subscribe(c, models.TypeHero)
		require.Equal(t, 1, h.TopicSubscribers(models.TypeHero))
		h.RemoveClient(c)
	}
}

func TestAddClientAfterStopIsRefused(t *testing.T) {
	h := NewHub()
	h.Stop()

	c := &Client{ID: "late", hub: h, send: make(chan []byte, 1)}
	assert.False(t, h.AddClient(c))
	assert.Equal(t, 0, h.ConnectedClients())
}

func TestStopDisconnectsEverySession(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)
	h.Subscribe(c, models.TypeHero)

	h.Stop()

	assert.Equal(t, 0, h.ConnectedClients())
	assert.Equal(t, 0, h.TopicSubscribers(models.TypeHero))
	_, open := <-c.send
	assert.False(t, open, "send channel closes on shutdown")

	// A disconnect arriving after Stop must not panic or double-close.
	h.RemoveClient(c)
}
