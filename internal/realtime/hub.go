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

// Hub maintains channel -> set of connections and broadcasts messages. A connection joins
// every channel its user can see. Redis pub/sub carries events between instances.
type Hub struct {
	// channel -> map[clientID]*Client
	channels map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per channel
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishChannelEvent(channel, event string, payload []byte) error
}

// RedisSubscriber subscribes to channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeChannel(channel string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		channels: make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to each of its channels. Starts a Redis subscription for a channel on
// its first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	for _, ch := range c.Channels {
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[string]*Client)
			if h.redisSub != nil {
				channel := ch
				cancel, err := h.redisSub.SubscribeChannel(channel, func(event string, payload []byte) {
					h.BroadcastToChannel(channel, event, json.RawMessage(payload))
				})
				if err != nil {
					h.logger.Warn("redis subscribe failed", zap.String("channel", channel), zap.Error(err))
				} else {
					h.subs[channel] = cancel
				}
			}
		}
		h.channels[ch][c.ID] = c
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()), zap.Int("channels", len(c.Channels)))
}

// Unregister removes a client from its channels. Cancels the Redis subscription when the last
// client of a channel leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for _, ch := range c.Channels {
		m, ok := h.channels[ch]
		if !ok {
			continue
		}
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.channels, ch)
			if cancel, ok := h.subs[ch]; ok {
				cancel()
				delete(h.subs, ch)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// BroadcastToChannel sends a message to all local clients of a channel.
func (h *Hub) BroadcastToChannel(channel, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Channel: channel, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.channels[channel] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every instance. With Redis configured it only publishes, and
// the subscription callback performs the local broadcast, so local clients get it once.
func (h *Hub) Publish(channel, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal realtime payload failed", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishChannelEvent(channel, event, data); err != nil {
			h.logger.Warn("redis publish failed", zap.String("channel", channel), zap.Error(err))
		}
		return
	}
	h.BroadcastToChannel(channel, event, json.RawMessage(data))
}

// ClientCount returns the number of local clients in a channel.
func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
