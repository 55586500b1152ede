package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// Options параметры подключения к Redis
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	PingAttempts uint64
	PingDelay    time.Duration
}

// NewRedisClient создает и возвращает новый клиент Redis.
// Ping повторяется с экспоненциальной задержкой, пока не кончатся попытки.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	b := backoff.NewExponentialBackOff()
	if opts.PingDelay > 0 {
		b.InitialInterval = opts.PingDelay
	}
	b.MaxElapsedTime = 0

	// Проверяем соединение с Redis
	ping := func() error {
		return rdb.Ping(ctx).Err()
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, opts.PingAttempts), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

// DeleteByPrefix удаляет все ключи с префиксом и возвращает их число.
// Используется SCAN, чтобы не блокировать сервер командой KEYS.
func DeleteByPrefix(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	deleted := 0
	batch := make([]string, 0, scanBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan keys: %w", err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("failed to delete keys: %w", err)
	}
	return deleted, nil
}
