package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"telehealth-platform/internal/analysis"
)

const DefaultChannel = "telehealth:call-outcomes"

// Redis publishes outcomes as JSON on a pub/sub channel for the appointment
// and notification services.
type Redis struct {
	rdb     redis.UniversalClient
	channel string
}

func NewRedis(rdb redis.UniversalClient, channel string) *Redis {
	if rdb == nil {
		panic("notify: redis client required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{rdb: rdb, channel: channel}
}

func (r *Redis) NotifyOutcome(ctx context.Context, o analysis.Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("notify: encode outcome: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish outcome: %w", err)
	}
	return nil
}
