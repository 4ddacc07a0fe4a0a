// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/colastat/pkg/cola"
)

// historyLength is how many scans are kept per device list
const historyLength = 1000

// RedisOptions selects the server and channel for a RedisPublisher
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisPublisher publishes each scan as JSON on a channel and keeps the
// newest scans in a per-device list.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
}

// NewRedisPublisher connects and pings the server
func NewRedisPublisher(ctx context.Context, opts RedisOptions, log logrus.FieldLogger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	log.WithField("addr", opts.Addr).Info("Connected to redis")
	return &RedisPublisher{client: client, channel: opts.Channel, log: log}, nil
}

// HistoryKey is the list holding recent scans of a device
func HistoryKey(serial uint64) string {
	return fmt.Sprintf("colastat:%X:scans", serial)
}

func (p *RedisPublisher) Write(ctx context.Context, r *cola.ScanRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode scan: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish scan: %w", err)
	}

	key := HistoryKey(r.SerialNumber)
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, historyLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("Failed to store scan history")
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
