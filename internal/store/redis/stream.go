// Package redis provides the Redis Streams transport used to fan audit
// events out to downstream consumers (fraud review, SIEM ingestion).
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Stream wraps a client publishing to a single Redis stream.
type Stream struct {
	client *redis.Client
	stream string
}

func NewStream(url, stream string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Stream{client: client, stream: stream}, nil
}

// Publish appends values to the stream.
func (s *Stream) Publish(ctx context.Context, values map[string]any) error {
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}
