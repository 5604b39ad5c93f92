// Package changefeed broadcasts committed schedule changes over Redis pub/sub.
// Delivery is best effort: subscribers that miss an event refetch on the next one.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

const DefaultChannel = "shifts:changes"

// NewRedisClient connects to Redis and checks it is reachable
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// Feed publishes and subscribes to change events. A Feed with a nil client
// drops published events and yields no subscriptions.
type Feed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func New(client *redis.Client, channel string, logger *zap.Logger) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Feed{client: client, channel: channel, logger: logger}
}

// Enabled reports whether the feed is backed by Redis
func (f *Feed) Enabled() bool {
	return f != nil && f.client != nil
}

func (f *Feed) Close() error {
	if !f.Enabled() {
		return nil
	}
	return f.client.Close()
}

// Publish sends event to every current subscriber
func (f *Feed) Publish(ctx context.Context, event model.ChangeEvent) error {
	if !f.Enabled() {
		return nil
	}

	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", f.channel, err)
	}
	return nil
}

// Subscribe returns a channel of events that is closed when ctx is done.
// Malformed messages are logged and skipped.
func (f *Feed) Subscribe(ctx context.Context) (<-chan model.ChangeEvent, error) {
	out := make(chan model.ChangeEvent, 16)
	if !f.Enabled() {
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}

	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", f.channel, err)
	}

	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				event, err := decodeEvent(msg.Payload)
				if err != nil {
					f.logger.Warn("Skipping malformed change event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func encodeEvent(event model.ChangeEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change event: %w", err)
	}
	return payload, nil
}

func decodeEvent(payload string) (model.ChangeEvent, error) {
	var event model.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("failed to decode change event: %w", err)
	}
	if event.Kind == "" {
		return model.ChangeEvent{}, fmt.Errorf("change event has no kind")
	}
	return event, nil
}
