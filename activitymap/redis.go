package activitymap

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-academy"
)

// DefaultStream is the stream activity is appended to when none is set.
const DefaultStream = "academy:activity"

// DefaultMaxLen caps the stream, older entries are trimmed approximately.
const DefaultMaxLen = 10000

// RedisStream appends normalized activity to a redis stream so other
// services can consume it with XREAD or a consumer group.
type RedisStream struct {
	client  redis.Cmdable
	stream  string
	maxLen  int64
	options []Option
}

var _ academy.ActivitySink = (*RedisStream)(nil)

func NewRedisStream(client redis.Cmdable, stream string, opts ...Option) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{
		client:  client,
		stream:  stream,
		maxLen:  DefaultMaxLen,
		options: opts,
	}
}

// WithMaxLen overrides the stream cap, zero disables trimming.
func (s *RedisStream) WithMaxLen(n int64) *RedisStream {
	s.maxLen = n
	return s
}

func (s *RedisStream) Record(ctx context.Context, event academy.ActivityEvent) error {
	record := Normalize(event, s.options...)

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: map[string]any{
			"verb":    record.Verb,
			"payload": string(payload),
		},
	}).Err()
}

// Read returns up to count entries after lastID, "0" reads from the start.
func (s *RedisStream) Read(ctx context.Context, lastID string, count int64) ([]Entry, string, error) {
	if lastID == "" {
		lastID = "0"
	}

	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.stream, lastID},
		Count:   count,
		Block:   -1,
	}).Result()
	if err == redis.Nil {
		return nil, lastID, nil
	}
	if err != nil {
		return nil, lastID, err
	}

	var out []Entry
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			lastID = msg.ID
			raw, _ := msg.Values["payload"].(string)
			var record Entry
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				return out, lastID, err
			}
			out = append(out, record)
		}
	}
	return out, lastID, nil
}
