package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/campuskit/campus/pkg/observability"
)

// ChannelPrefix is prepended to table names to form pub/sub channels.
const ChannelPrefix = "campus.changes."

// ChangeEvent is the wire payload for one row change.
type ChangeEvent struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    int64  `json:"id"`
}

// ChannelFor returns the pub/sub channel for a table.
func ChannelFor(table string) string {
	return ChannelPrefix + table
}

// Feed publishes and subscribes to change events.
type Feed struct {
	client  *redis.Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewFeed creates a feed over client. metrics may be nil.
func NewFeed(client *redis.Client, logger *observability.Logger, metrics *observability.Metrics) *Feed {
	return &Feed{client: client, logger: logger, metrics: metrics}
}

// PublishChange announces a row change. Failures are logged, never
// returned: the mutation that triggered the event has already
// happened and must not be rolled back over a notification.
func (f *Feed) PublishChange(ctx context.Context, table, op string, id int64) {
	payload, err := json.Marshal(ChangeEvent{Table: table, Op: op, ID: id})
	if err != nil {
		f.logger.FromContext(ctx).WithError(err).Error("failed to encode change event")
		return
	}
	if err := f.client.Publish(ctx, ChannelFor(table), payload).Err(); err != nil {
		f.logger.FromContext(ctx).WithError(err).
			WithFields(map[string]any{"table": table, "op": op}).
			Error("failed to publish change event")
		return
	}
	if f.metrics != nil {
		f.metrics.FeedEventsTotal.WithLabelValues(table, op).Inc()
	}
}

// Subscribe listens for change events on the given tables and invokes
// handler for each decoded event. It blocks until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (f *Feed) Subscribe(ctx context.Context, tables []string, handler func(ChangeEvent)) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to subscribe to")
	}
	channels := make([]string, len(tables))
	for i, table := range tables {
		channels[i] = ChannelFor(table)
	}

	sub := f.client.Subscribe(ctx, channels...)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.WithError(err).WithField("channel", msg.Channel).
					Warn("dropping malformed change event")
				continue
			}
			handler(event)
		}
	}
}
