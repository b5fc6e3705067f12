package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/leozw/domain-activator/internal/storage"
)

const verdictTTL = 24 * time.Hour

type Client struct {
	redis.UniversalClient
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{client}, nil
}

func Wrap(client redis.UniversalClient) *Client {
	return &Client{client}
}

func (c *Client) SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, expiration).Err()
}

func (c *Client) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func verdictKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("domain:verdict:%s", tenantID)
}

func (c *Client) SaveVerdict(ctx context.Context, tenantID uuid.UUID, v storage.StoredVerdict) error {
	return c.SetJSON(ctx, verdictKey(tenantID), v, verdictTTL)
}

func (c *Client) LatestVerdict(ctx context.Context, tenantID uuid.UUID) (*storage.StoredVerdict, error) {
	var v storage.StoredVerdict
	err := c.GetJSON(ctx, verdictKey(tenantID), &v)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) DeleteVerdict(ctx context.Context, tenantID uuid.UUID) error {
	return c.Del(ctx, verdictKey(tenantID)).Err()
}

// Claim implements notify.Claimer with SET NX.
func (c *Client) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (c *Client) Release(ctx context.Context, key string) error {
	return c.Del(ctx, key).Err()
}
