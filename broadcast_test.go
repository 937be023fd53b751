/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky fails its first failures calls.
type flaky struct {
	mu       sync.Mutex
	failures int
	calls    int
	to       []string
}

func (f *flaky) attempt(player string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.to = append(f.to, player)
	if f.calls <= f.failures {
		return errors.New("broker unavailable")
	}
	return nil
}

func (f *flaky) Publish(ctx context.Context, room string, env Envelope) error {
	return f.attempt("")
}

func (f *flaky) PublishTo(ctx context.Context, room, player string, env Envelope) error {
	return f.attempt(player)
}

func fastRetry(next Broadcaster, tries int) *retryBroadcaster {
	cfg := defaultConfig()
	cfg.broadcastRetries = tries

	b := newRetryBroadcaster(cfg, next)
	b.interval = time.Millisecond
	return b
}

func TestRetryBroadcasterRecovers(t *testing.T) {
	next := &flaky{failures: 2}
	b := fastRetry(next, 3)

	err := b.Publish(context.Background(), "ROOM", Envelope{Event: "player-joined", Seq: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestRetryBroadcasterGivesUpQuietly(t *testing.T) {
	next := &flaky{failures: 100}
	b := fastRetry(next, 3)

	err := b.PublishTo(context.Background(), "ROOM", "Ana", Envelope{Event: "cell-selected", Seq: 4})
	require.NoError(t, err, "committed state is never rolled back over delivery")
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, []string{"Ana", "Ana", "Ana"}, next.to)
}

func TestRetryBroadcasterDoesNotBlockCoordinator(t *testing.T) {
	h := newHarness(t)
	h.coord.bus = fastRetry(&flaky{failures: 1000}, 2)

	roomID := h.lobby(t, "A", "B")
	h.start(t, roomID)

	assert.Equal(t, RoomPlaying, h.room(t, roomID).state())
}

func TestRetryBroadcasterForwardsClose(t *testing.T) {
	rec := &recorder{}
	b := fastRetry(rec, 1)

	b.CloseRoom("ROOM")
	assert.Equal(t, []string{"ROOM"}, rec.closed)
}

func subscriber(hub *Hub, room, player string, buffer int) *Client {
	c := &Client{
		id:     player + "-" + room,
		send:   make(chan []byte, buffer),
		room:   room,
		player: player,
	}
	hub.register(c)
	return c
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()

	select {
	case data, ok := <-c.send:
		require.True(t, ok, "subscriber was closed")

		var env struct {
			Event string `json:"event"`
			Room  string `json:"room"`
			Seq   uint64 `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		return Envelope{Event: env.Event, Room: env.Room, Seq: env.Seq}
	default:
		t.Fatal("nothing delivered")
		return Envelope{}
	}
}

func TestHubFanOut(t *testing.T) {
	hub := newHub(defaultConfig())
	ctx := context.Background()

	ana := subscriber(hub, "ROOM", "Ana", 4)
	bo := subscriber(hub, "ROOM", "Bo", 4)
	other := subscriber(hub, "ELSE", "Cy", 4)

	require.NoError(t, hub.Publish(ctx, "ROOM", Envelope{Event: "player-joined", Room: "ROOM", Seq: 1, Data: PlayerJoined{Player: "Bo"}}))

	assert.Equal(t, uint64(1), receive(t, ana).Seq)
	assert.Equal(t, uint64(1), receive(t, bo).Seq)
	assert.Empty(t, other.send)

	require.NoError(t, hub.PublishTo(ctx, "ROOM", "Ana", Envelope{Event: "cell-selected", Room: "ROOM", Seq: 2, Data: CellSelectedPrivate{}}))

	assert.Equal(t, "cell-selected", receive(t, ana).Event)
	assert.Empty(t, bo.send, "private events reach only their player")
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := newHub(defaultConfig())
	ctx := context.Background()

	slow := subscriber(hub, "ROOM", "Ana", 1)
	fast := subscriber(hub, "ROOM", "Bo", 4)

	for seq := uint64(1); seq <= 2; seq++ {
		require.NoError(t, hub.Publish(ctx, "ROOM", Envelope{Event: "player-joined", Seq: seq, Data: PlayerJoined{}}))
	}

	assert.Equal(t, 1, hub.subscribers("ROOM"))

	<-slow.send
	_, open := <-slow.send
	assert.False(t, open)

	assert.Len(t, fast.send, 2)
}

func TestHubCloseRoom(t *testing.T) {
	hub := newHub(defaultConfig())

	a := subscriber(hub, "ROOM", "Ana", 1)
	subscriber(hub, "ROOM", "Bo", 1)

	hub.CloseRoom("ROOM")
	assert.Zero(t, hub.subscribers("ROOM"))

	_, open := <-a.send
	assert.False(t, open)

	hub.unregister(a)
}

type triggered struct {
	channel string
	event   string
	data    any
}

type fakeTrigger struct {
	calls []triggered
	err   error
}

func (f *fakeTrigger) Trigger(channel string, eventName string, data interface{}) error {
	f.calls = append(f.calls, triggered{channel, eventName, data})
	return f.err
}

func TestPusherChannels(t *testing.T) {
	fake := &fakeTrigger{}
	p := &pusherBroadcaster{client: fake}
	ctx := context.Background()

	env := Envelope{Event: "game-over", Room: "ROOM", Seq: 9, Data: GameOver{}}
	require.NoError(t, p.Publish(ctx, "ROOM", env))
	require.NoError(t, p.PublishTo(ctx, "ROOM", "Zoë K", Envelope{Event: "wildcard-used", Seq: 10}))

	require.Len(t, fake.calls, 2)
	assert.Equal(t, triggered{"room-ROOM", "game-over", env}, fake.calls[0])
	assert.Equal(t, "room-ROOM-player-Wm_DqyBL", fake.calls[1].channel)
	assert.Equal(t, "wildcard-used", fake.calls[1].event)

	fake.err = errors.New("401 unauthorized")
	assert.Error(t, p.Publish(ctx, "ROOM", env))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, p.Publish(cancelled, "ROOM", env), context.Canceled)
}

func TestNewPusherBroadcaster(t *testing.T) {
	cfg := defaultConfig()
	cfg.pusherAppID, cfg.pusherKey, cfg.pusherSecret, cfg.pusherCluster = "1", "key", "secret", "eu"

	assert.NotNil(t, newPusherBroadcaster(cfg).client)
}
