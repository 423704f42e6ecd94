package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	applog "shopfront/internal/log"
)

const channelPrefix = "rt:user:"

// RedisBridge routes publishes through a Redis channel per user so that a
// client connected to any instance still receives its events. Every instance
// runs the subscribe loop and feeds its local hub; Redis delivers a publish
// back to the publishing instance too, so Publish never writes to the hub
// directly.
type RedisBridge struct {
	rdb *redis.Client
	hub *Hub
}

func NewRedisBridge(rdb *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{rdb: rdb, hub: hub}
}

type wireEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func (b *RedisBridge) Publish(userID string, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		applog.Error(nil, "realtime.redis.encode", err, map[string]any{"user_id": userID})
		return
	}
	if err := b.rdb.Publish(context.Background(), channelPrefix+userID, body).Err(); err != nil {
		applog.Error(nil, "realtime.redis.publish", err, map[string]any{"user_id": userID})
	}
}

// Run blocks consuming the per-user channels until ctx is cancelled. Meant to
// run in its own goroutine from main.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			userID := strings.TrimPrefix(msg.Channel, channelPrefix)
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				applog.Error(nil, "realtime.redis.decode", err, map[string]any{"channel": msg.Channel})
				continue
			}
			b.hub.Publish(userID, Event{Name: we.Name, Data: we.Data})
		}
	}
}
