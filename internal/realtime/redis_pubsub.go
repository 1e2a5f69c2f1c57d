package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	classroomChannel = "classroom:events"
	publishTimeout   = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance fan-out.
// Origin carries the publishing hub's instance id so an instance can skip its
// own events on re-delivery.
type redisPayload struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// RedisPubSub bridges classroom events over Redis pub/sub so broadcast events
// reach clients attached to other instances. Poll state itself stays
// single-instance; this is read-only fan-out of the event stream.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

var (
	_ Publisher  = (*RedisPubSub)(nil)
	_ Subscriber = (*RedisPubSub)(nil)
)

// NewRedisPubSub creates the Redis pub/sub bridge.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishClassroomEvent publishes an event to the shared classroom channel.
func (r *RedisPubSub) PublishClassroomEvent(origin, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Origin: origin, Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, classroomChannel, body).Err()
}

// SubscribeClassroom subscribes to the classroom channel and calls handler
// for each message. Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeClassroom(handler func(origin, event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, classroomChannel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("bad classroom event payload", zap.Error(err))
					continue
				}
				handler(p.Origin, p.Event, p.Data)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
