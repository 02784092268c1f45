// Package stats shares each bridge instance's counters through Redis so any
// instance can report cluster-wide totals.
//
// Redis key structure:
//
//	bridge:stats:{instance_id} - hash with the instance's latest counters (expires 10m)
//	bridge:instances           - set of instance IDs that have published
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/telhawk-bridge/internal/metrics"
)

const (
	keyPrefix    = "bridge:stats:"
	instancesKey = "bridge:instances"

	// InstanceTTL is how long an instance's counters outlive its last flush.
	InstanceTTL = 10 * time.Minute
)

// InstanceStats is one instance's last published counters.
type InstanceStats struct {
	InstanceID string           `json:"instance_id"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Counters   metrics.Snapshot `json:"counters"`
}

// ClusterStats sums all live instances.
type ClusterStats struct {
	Total       metrics.Snapshot `json:"total"`
	Instances   []InstanceStats  `json:"instances"`
	RetrievedAt time.Time        `json:"retrieved_at"`
}

// Client publishes and aggregates instance counters.
type Client struct {
	redis      *redis.Client
	instanceID string
}

// NewClient connects to redisURL and checks the connection.
func NewClient(redisURL, instanceID string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewClientFromRedis(client, instanceID), nil
}

// NewClientFromRedis wraps an existing connection.
func NewClientFromRedis(client *redis.Client, instanceID string) *Client {
	return &Client{redis: client, instanceID: instanceID}
}

// InstanceID returns this instance's ID.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// Publish overwrites this instance's counters.
func (c *Client) Publish(ctx context.Context, snap metrics.Snapshot) error {
	key := keyPrefix + c.instanceID

	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"messages_processed":   snap.MessagesProcessed,
		"errors":               snap.Errors,
		"transactions_success": snap.TransactionsSuccess,
		"transactions_failure": snap.TransactionsFailure,
		"amount_sum":           strconv.FormatFloat(snap.AmountSum, 'f', -1, 64),
		"high_value_count":     snap.HighValueCount,
		"updated_at":           time.Now().Unix(),
	})
	pipe.Expire(ctx, key, InstanceTTL)
	pipe.SAdd(ctx, instancesKey, c.instanceID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish stats: %w", err)
	}
	return nil
}

// Aggregate reads every live instance and sums their counters. Instances
// whose hash has expired are removed from the instance set.
func (c *Client) Aggregate(ctx context.Context) (*ClusterStats, error) {
	ids, err := c.redis.SMembers(ctx, instancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	sort.Strings(ids)

	pipe := c.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, keyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	out := &ClusterStats{Instances: []InstanceStats{}, RetrievedAt: time.Now().UTC()}
	var stale []any
	for i, id := range ids {
		fields, err := cmds[i].Result()
		if err != nil || len(fields) == 0 {
			stale = append(stale, id)
			continue
		}

		inst := parseInstance(id, fields)
		out.Instances = append(out.Instances, inst)
		out.Total = out.Total.Add(inst.Counters)
	}

	if len(stale) > 0 {
		if err := c.redis.SRem(ctx, instancesKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune instances: %w", err)
		}
	}
	return out, nil
}

func parseInstance(id string, fields map[string]string) InstanceStats {
	i64 := func(name string) int64 {
		v, _ := strconv.ParseInt(fields[name], 10, 64)
		return v
	}
	amount, _ := strconv.ParseFloat(fields["amount_sum"], 64)

	return InstanceStats{
		InstanceID: id,
		UpdatedAt:  time.Unix(i64("updated_at"), 0).UTC(),
		Counters: metrics.Snapshot{
			MessagesProcessed:   i64("messages_processed"),
			Errors:              i64("errors"),
			TransactionsSuccess: i64("transactions_success"),
			TransactionsFailure: i64("transactions_failure"),
			AmountSum:           amount,
			HighValueCount:      i64("high_value_count"),
		},
	}
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}
