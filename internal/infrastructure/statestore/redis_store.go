package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/erp/labelsync/internal/domain/integration"
)

const defaultRedisKeyPrefix = "labelsync:"

// RedisLedger keeps each store's ledger as a sorted set with every score at 0,
// so members come back in lexicographic order.
type RedisLedger struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLedger creates a ledger on an existing client
func NewRedisLedger(client redis.UniversalClient, keyPrefix string) *RedisLedger {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisLedger{client: client, keyPrefix: keyPrefix}
}

// Ensure RedisLedger implements Ledger
var _ integration.Ledger = (*RedisLedger)(nil)

func (l *RedisLedger) key(storeCode string) string {
	return l.keyPrefix + "ledger:" + storeCode
}

// Has reports whether id is ledgered for the store
func (l *RedisLedger) Has(ctx context.Context, storeCode, id string) (bool, error) {
	_, err := l.client.ZScore(ctx, l.key(storeCode), id).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return true, nil
}

// Insert adds id; ZADD NX makes repeats a no-op
func (l *RedisLedger) Insert(ctx context.Context, storeCode, id string) error {
	if err := l.client.ZAddNX(ctx, l.key(storeCode), redis.Z{Score: 0, Member: id}).Err(); err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Remove deletes id if present
func (l *RedisLedger) Remove(ctx context.Context, storeCode, id string) error {
	if err := l.client.ZRem(ctx, l.key(storeCode), id).Err(); err != nil {
		return fmt.Errorf("failed to remove ledger entry: %w", err)
	}
	return nil
}

// List returns the store's ledger in lexicographic order
func (l *RedisLedger) List(ctx context.Context, storeCode string) ([]string, error) {
	ids, err := l.client.ZRangeByLex(ctx, l.key(storeCode), &redis.ZRangeBy{Min: "-", Max: "+"}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// RedisPendingQueue keeps each store's queue as a list of JSON documents
type RedisPendingQueue struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisPendingQueue creates a pending queue on an existing client
func NewRedisPendingQueue(client redis.UniversalClient, keyPrefix string) *RedisPendingQueue {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisPendingQueue{client: client, keyPrefix: keyPrefix}
}

// Ensure RedisPendingQueue implements PendingQueue
var _ integration.PendingQueue = (*RedisPendingQueue)(nil)

func (q *RedisPendingQueue) key(storeCode string) string {
	return q.keyPrefix + "pending:" + storeCode
}

func encodeEntries(entries []integration.Record) ([]any, error) {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pending entry: %w", err)
		}
		values = append(values, string(b))
	}
	return values, nil
}

// Append pushes entries onto the tail of the store's list
func (q *RedisPendingQueue) Append(ctx context.Context, storeCode string, entries ...integration.Record) error {
	if len(entries) == 0 {
		return nil
	}
	values, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key(storeCode), values...).Err(); err != nil {
		return fmt.Errorf("failed to append pending entries: %w", err)
	}
	return nil
}

// List returns the store's entries in insertion order
func (q *RedisPendingQueue) List(ctx context.Context, storeCode string) ([]integration.Record, error) {
	raw, err := q.client.LRange(ctx, q.key(storeCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	entries := make([]integration.Record, 0, len(raw))
	for i, s := range raw {
		var rec integration.Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode pending entry %d: %w", i, err)
		}
		entries = append(entries, rec)
	}
	return entries, nil
}

// Replace swaps the store's list atomically
func (q *RedisPendingQueue) Replace(ctx context.Context, storeCode string, entries []integration.Record) error {
	values, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	key := q.key(storeCode)
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace pending entries: %w", err)
	}
	return nil
}
