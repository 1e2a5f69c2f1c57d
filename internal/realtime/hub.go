package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Publisher mirrors broadcast events to other instances via Redis.
type Publisher interface {
	PublishClassroomEvent(origin, event string, payload []byte) error
}

// Subscriber receives classroom events published by other instances.
type Subscriber interface {
	SubscribeClassroom(handler func(origin, event string, payload []byte)) (cancel func(), err error)
}

// Hub holds the connected clients of the single classroom and fans events out
// to them. When Redis is configured, broadcasts are also published so clients
// attached to other instances see the same stream; events originating from
// this instance are skipped on re-delivery.
type Hub struct {
	instanceID string
	mu         sync.RWMutex
	clients    map[string]*Client
	logger     *zap.Logger
	pub        Publisher
	cancelSub  func()
}

// NewHub creates a hub and, when sub is non-nil, starts mirroring events
// published by other instances.
func NewHub(instanceID string, logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	h := &Hub{
		instanceID: instanceID,
		clients:    make(map[string]*Client),
		logger:     logger,
		pub:        pub,
	}
	if sub != nil {
		cancel, err := sub.SubscribeClassroom(func(origin, event string, payload []byte) {
			if origin == h.instanceID {
				return
			}
			h.broadcastLocal(event, json.RawMessage(payload))
		})
		if err != nil {
			logger.Warn("classroom event subscription failed", zap.Error(err))
		} else {
			h.cancelSub = cancel
		}
	}
	return h
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.Int("connected", count))
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.Int("connected", count))
}

// Broadcast sends an event to every connected client and mirrors it to other
// instances when Redis is configured.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.broadcastLocal(event, payload)
	if h.pub != nil {
		if data, err := json.Marshal(payload); err == nil {
			_ = h.pub.PublishClassroomEvent(h.instanceID, event, data)
		}
	}
}

func (h *Hub) broadcastLocal(event string, payload interface{}) {
	data, err := marshalPayload(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Unicast sends an event to a single client.
func (h *Hub) Unicast(clientID, event string, payload interface{}) {
	data, err := marshalPayload(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	// The send stays under the read lock so it cannot race a Kick or
	// disconnect closing the channel.
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Kick delivers a final event to the client and then closes its connection.
// The client is removed from the hub immediately so no later broadcast can
// reach the closed channel; roster cleanup happens through the normal
// disconnect path when the connection drops.
func (h *Hub) Kick(clientID string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(h.clients, clientID)
	if data, err := marshalPayload(payload); err == nil {
		select {
		case c.send <- WSMessage{Event: EventKicked, Data: data}:
		default:
		}
	}
	c.closeSend()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the Redis subscription, if any.
func (h *Hub) Close() {
	if h.cancelSub != nil {
		h.cancelSub()
	}
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
