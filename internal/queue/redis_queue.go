package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrTimeout = errors.New("queue timeout")

type CommandType string

const (
	// CommandStart begins monitoring a freshly submitted request.
	CommandStart CommandType = "start"
	// CommandRestart re-enters monitoring after a timeout.
	CommandRestart CommandType = "restart"
	// CommandRecheck asks a live session for an immediate tick.
	CommandRecheck CommandType = "recheck"
	// CommandCancel stops the tenant's session, if any.
	CommandCancel CommandType = "cancel"
)

// Command is what the API hands to the worker that hosts the sessions.
type Command struct {
	ID        string      `json:"id"`
	Type      CommandType `json:"type"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	RequestID uuid.UUID   `json:"request_id"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewCommand(t CommandType, tenantID, requestID uuid.UUID) *Command {
	return &Command{
		ID:        uuid.NewString(),
		Type:      t,
		TenantID:  tenantID,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
}

type RedisQueue struct {
	client    redis.UniversalClient
	queueName string
}

func NewRedisQueue(client redis.UniversalClient) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueName: "domain_activation_commands",
	}
}

// Push orders commands by creation time so a cancel never overtakes the
// start it follows.
func (q *RedisQueue) Push(ctx context.Context, cmd *Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	err = q.client.ZAdd(ctx, q.queueName, redis.Z{
		Score:  float64(cmd.CreatedAt.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to push command: %w", err)
	}
	return nil
}

// Dispatch lets the API hand commands to a remote worker.
func (q *RedisQueue) Dispatch(ctx context.Context, cmd *Command) error {
	return q.Push(ctx, cmd)
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Command, error) {
	result, err := q.client.BZPopMin(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to pop command: %w", err)
	}

	member, ok := result.Member.(string)
	if !ok {
		return nil, errors.New("invalid result from queue")
	}

	var cmd Command
	if err := json.Unmarshal([]byte(member), &cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	return &cmd, nil
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueName).Result()
}
