/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Broadcaster fans events out to a room's subscribers, or to one player's
// private channel within the room.
type Broadcaster interface {
	Publish(ctx context.Context, room string, env Envelope) error
	PublishTo(ctx context.Context, room, player string, env Envelope) error
}

// roomCloser is implemented by broadcasters that hold per-room resources.
type roomCloser interface {
	CloseRoom(room string)
}

// retryBroadcaster retries failed deliveries with exponential backoff and
// gives up after a bounded number of attempts. Failures are logged, never
// returned: state has already been committed by the time an event is sent.
type retryBroadcaster struct {
	cfg      *Config
	next     Broadcaster
	tries    uint
	interval time.Duration
}

func newRetryBroadcaster(cfg *Config, next Broadcaster) *retryBroadcaster {
	return &retryBroadcaster{
		cfg:      cfg,
		next:     next,
		tries:    uint(max(cfg.broadcastRetries, 1)),
		interval: 50 * time.Millisecond,
	}
}

func (b *retryBroadcaster) Publish(ctx context.Context, room string, env Envelope) error {
	b.deliver(ctx, room, "", env, func() error {
		return b.next.Publish(ctx, room, env)
	})
	return nil
}

func (b *retryBroadcaster) PublishTo(ctx context.Context, room, player string, env Envelope) error {
	b.deliver(ctx, room, player, env, func() error {
		return b.next.PublishTo(ctx, room, player, env)
	})
	return nil
}

func (b *retryBroadcaster) CloseRoom(room string) {
	if c, ok := b.next.(roomCloser); ok {
		c.CloseRoom(room)
	}
}

func (b *retryBroadcaster) deliver(ctx context.Context, room, player string, env Envelope, send func() error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.interval
	policy.MaxInterval = 8 * b.interval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, send()
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(b.tries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logf(b.cfg, "BROADCAST: %s #%d to room %s failed (attempt %d, retrying in %s): %v",
				env.Event, env.Seq, room, attempt, wait.Round(time.Millisecond), err)
		}),
	)
	if err != nil {
		target := room
		if player != "" {
			target = room + "/" + player
		}
		errorf("BROADCAST: dropped %s #%d for %s after %d attempt(s): %v", env.Event, env.Seq, target, attempt, err)
	}
}
