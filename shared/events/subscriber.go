package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Handler func(ctx context.Context, event Event) error

// Subscriber consumes one stream as a member of a consumer group.
//
// Entries are acknowledged only after the handler succeeds. On start, and again
// every RetryInterval, the subscriber replays its own pending entries so a failed
// or interrupted delivery is retried.
type Subscriber struct {
	client    *redis.Client
	cfg       SubscriberConfig
	lastRetry time.Time
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	RetryInterval time.Duration
}

func NewSubscriber(client *redis.Client, cfg SubscriberConfig) *Subscriber {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	return &Subscriber{client: client, cfg: cfg}
}

func (s *Subscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", s.cfg.Group, err)
	}
	return nil
}

// Start blocks until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}
	slog.Info("subscriber started", "stream", s.cfg.Stream, "group", s.cfg.Group, "consumer", s.cfg.Consumer)

	for ctx.Err() == nil {
		if time.Since(s.lastRetry) >= s.cfg.RetryInterval {
			if _, err := s.poll(ctx, "0"); err != nil && ctx.Err() == nil {
				slog.Warn("pending replay failed", "stream", s.cfg.Stream, "error", err)
			}
			s.lastRetry = time.Now()
		}
		if _, err := s.poll(ctx, ">"); err != nil && ctx.Err() == nil {
			slog.Error("subscriber read failed", "stream", s.cfg.Stream, "error", err)
			time.Sleep(time.Second)
		}
	}
	slog.Info("subscriber stopping", "stream", s.cfg.Stream)
	return ctx.Err()
}

// poll reads one batch starting at id (">" for new entries, "0" for this consumer's
// pending ones) and returns how many entries were acknowledged.
func (s *Subscriber) poll(ctx context.Context, id string) (int, error) {
	args := &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, id},
		Count:    s.cfg.BatchSize,
		Block:    s.cfg.BlockDuration,
	}
	if id != ">" {
		// Pending entries are returned immediately; never block on them.
		args.Block = -1
	}
	streams, err := s.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	acked := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if err := s.handle(ctx, msg); err != nil {
				slog.Error("event handling failed; leaving it pending",
					"stream", s.cfg.Stream, "message_id", msg.ID, "error", err)
				continue
			}
			if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, msg.ID).Err(); err != nil {
				slog.Warn("failed to ack message", "stream", s.cfg.Stream, "message_id", msg.ID, "error", err)
				continue
			}
			acked++
		}
	}
	return acked, nil
}

func (s *Subscriber) handle(ctx context.Context, msg redis.XMessage) error {
	event, err := parseMessage(msg)
	if err != nil {
		return err
	}
	return s.cfg.Handler(ctx, event)
}

func parseMessage(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values[fieldEvent].(string)
	if !ok {
		return Event{}, fmt.Errorf("message %s has no %q field", msg.ID, fieldEvent)
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal message %s: %w", msg.ID, err)
	}
	return event, nil
}
