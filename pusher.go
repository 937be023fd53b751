/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/base64"

	"github.com/pusher/pusher-http-go/v5"
)

// trigger is the slice of the pusher client used here.
type trigger interface {
	Trigger(channel string, eventName string, data interface{}) error
}

// pusherBroadcaster publishes to a hosted Pusher-compatible service. Each
// room is one channel; private delivery uses a per-player channel.
type pusherBroadcaster struct {
	client trigger
}

func newPusherBroadcaster(cfg *Config) *pusherBroadcaster {
	return &pusherBroadcaster{
		client: &pusher.Client{
			AppID:   cfg.pusherAppID,
			Key:     cfg.pusherKey,
			Secret:  cfg.pusherSecret,
			Cluster: cfg.pusherCluster,
			Secure:  true,
		},
	}
}

func roomChannel(room string) string {
	return "room-" + room
}

// playerChannel encodes the name, since channel names only allow a small
// character set. The channel is public: anyone who knows the room code and
// a player's name can subscribe to it. Moving it behind a "private-" prefix
// needs a channel auth endpoint, and players are not authenticated.
func playerChannel(room, player string) string {
	return roomChannel(room) + "-player-" + base64.RawURLEncoding.EncodeToString([]byte(player))
}

func (p *pusherBroadcaster) Publish(ctx context.Context, room string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.client.Trigger(roomChannel(room), env.Event, env)
}

func (p *pusherBroadcaster) PublishTo(ctx context.Context, room, player string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.client.Trigger(playerChannel(room, player), env.Event, env)
}
