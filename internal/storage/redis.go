package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"peerline/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	roomSequenceKey  = "rooms:sequence"
	LifecycleChannel = "rooms:lifecycle"
)

// raiseTo sets the counter to ARGV[1] unless it is already higher.
var raiseTo = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if cur < floor then
  redis.call("SET", KEYS[1], floor)
  return floor
end
return cur
`)

// NextRoomSequence hands out room numbers with an atomic INCR. Without Redis
// (admin tooling) it falls back to the table maximum.
func (s *Service) NextRoomSequence(ctx context.Context) (int64, error) {
	if s.Redis == nil {
		maxSeq, err := s.MaxRoomSequence(ctx)
		if err != nil {
			return 0, fmt.Errorf("read room sequence: %w", err)
		}
		return maxSeq + 1, nil
	}
	seq, err := s.Redis.Incr(ctx, roomSequenceKey).Result()
	if err != nil {
		return 0, fmt.Errorf("incr room sequence: %w", err)
	}
	return seq, nil
}

// SyncRoomSequence makes sure the Redis counter never restarts below what
// PostgreSQL already issued, e.g. after a Redis flush.
func (s *Service) SyncRoomSequence(ctx context.Context) (int64, error) {
	maxSeq, err := s.MaxRoomSequence(ctx)
	if err != nil {
		return 0, fmt.Errorf("read room sequence: %w", err)
	}
	cur, err := raiseTo.Run(ctx, s.Redis, []string{roomSequenceKey}, maxSeq).Int64()
	if err != nil {
		return 0, fmt.Errorf("sync room sequence: %w", err)
	}
	return cur, nil
}

// PublishRoomEvent publishes a content-free lifecycle event.
func (s *Service) PublishRoomEvent(ctx context.Context, evt models.RoomEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, LifecycleChannel, payload).Err()
}

// SubscribeRoomEvents opens a subscription to the lifecycle channel.
func (s *Service) SubscribeRoomEvents(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, LifecycleChannel)
}

// DecodeRoomEvent parses a payload received from the lifecycle channel.
func DecodeRoomEvent(payload string) (models.RoomEvent, error) {
	var evt models.RoomEvent
	err := json.Unmarshal([]byte(payload), &evt)
	return evt, err
}
