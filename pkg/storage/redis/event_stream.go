// Package redis carries the production-floor event stream: reporters
// (scanner guns, floor terminals) XADD block_started/output_reported/
// block_completed events here, and cmd/reporter consumes them via a
// consumer group and applies them against pkg/repository.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamKeyEvents is the Redis Stream production events are appended to.
const StreamKeyEvents = "planner:events:production"

// EventKind names one of the three production-floor events the reporter
// recognizes.
type EventKind string

const (
	EventBlockStarted   EventKind = "block_started"
	EventOutputReported EventKind = "output_reported"
	EventBlockCompleted EventKind = "block_completed"
)

// ProductionEvent is one floor-reported fact about a PlanTask.
type ProductionEvent struct {
	Kind         EventKind `json:"kind"`
	PlanTaskID   string    `json:"plan_task_id"`
	ActualOutput int       `json:"actual_output,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventStream wraps a Redis client for the production-event stream.
type EventStream struct {
	client *redis.Client
}

// NewEventStream initializes a new Redis client.
func NewEventStream(addr string) (*EventStream, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &EventStream{client: client}, nil
}

func (r *EventStream) Close() error {
	return r.client.Close()
}

// Publish appends one production event to the stream.
func (r *EventStream) Publish(ctx context.Context, ev ProductionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal production event: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKeyEvents,
		Values: map[string]interface{}{
			"payload":      payload,
			"kind":         string(ev.Kind),
			"plan_task_id": ev.PlanTaskID,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish production event: %w", err)
	}
	return nil
}

// EnsureGroup creates the consumer group if it doesn't already exist.
func (r *EventStream) EnsureGroup(ctx context.Context, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, StreamKeyEvents, group, "$").Err()
	if err != nil {
		if err.Error() == "BUSYGROUP Consumer Group name already exists" {
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// ReadOne blocks briefly for the next unclaimed event on group/consumer,
// returning ("", nil, nil) on timeout.
func (r *EventStream) ReadOne(ctx context.Context, group, consumer string) (string, *ProductionEvent, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{StreamKeyEvents, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return "", nil, nil
	}

	msg := streams[0].Messages[0]
	payloadStr, ok := msg.Values["payload"].(string)
	if !ok {
		return msg.ID, nil, fmt.Errorf("invalid payload format")
	}
	var ev ProductionEvent
	if err := json.Unmarshal([]byte(payloadStr), &ev); err != nil {
		return msg.ID, nil, fmt.Errorf("failed to unmarshal production event: %w", err)
	}
	return msg.ID, &ev, nil
}

// Ack acknowledges an event as processed.
func (r *EventStream) Ack(ctx context.Context, group string, msgID string) error {
	return r.client.XAck(ctx, StreamKeyEvents, group, msgID).Err()
}
