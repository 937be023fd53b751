/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand"
	"sync"
	"time"
)

// LivenessStatus is what a player's client last reported about itself.
type LivenessStatus string

const (
	StatusActive       LivenessStatus = "active"
	StatusAway         LivenessStatus = "away"
	StatusDisconnected LivenessStatus = "disconnected"
)

type RoomState string

const (
	RoomWaiting  RoomState = "waiting"
	RoomPlaying  RoomState = "playing"
	RoomFinished RoomState = "finished"
)

// Player is a room member. Name is the identity key within a room.
type Player struct {
	Name            string
	IsHost          bool
	IsReady         bool
	Status          LivenessStatus
	LastHeartbeatAt time.Time
}

// Room holds the players and the optional game session of one room code.
// Every field is guarded by mu; coordinator operations hold it for their
// whole duration, broadcast included.
type Room struct {
	id string

	mu         sync.Mutex
	players    []*Player // join order
	session    *Session
	lastCardID string
	rng        *rand.Rand
	seq        uint64
	closed     bool

	createdAt  time.Time
	lastActive time.Time

	outbox []outgoing
}

func newRoom(id string, rng *rand.Rand, now time.Time) *Room {
	return &Room{
		id:         id,
		rng:        rng,
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) state() RoomState {
	switch {
	case r.session == nil:
		return RoomWaiting
	case r.session.over:
		return RoomFinished
	default:
		return RoomPlaying
	}
}

func (r *Room) player(name string) *Player {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) host() *Player {
	for _, p := range r.players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (r *Room) names() []string {
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.Name)
	}
	return names
}

// removePlayer drops name from the player list and reports whether it was
// present.
func (r *Room) removePlayer(name string) (*Player, bool) {
	for i, p := range r.players {
		if p.Name == name {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// settleHost leaves exactly one host when any players remain: the current
// host if there is one, otherwise the earliest joiner. It returns the new
// host when a promotion happened.
func (r *Room) settleHost() *Player {
	if len(r.players) == 0 {
		return nil
	}

	var kept *Player
	for _, p := range r.players {
		if p.IsHost && kept == nil {
			kept = p
			continue
		}
		p.IsHost = false
	}
	if kept != nil {
		return nil
	}

	r.players[0].IsHost = true
	return r.players[0]
}

// emit queues ev for every subscriber of the room.
func (r *Room) emit(ev Event) {
	r.outbox = append(r.outbox, outgoing{event: ev})
}

// emitTo queues ev for a single player's private channel.
func (r *Room) emitTo(player string, ev Event) {
	r.outbox = append(r.outbox, outgoing{event: ev, to: player})
}

func (r *Room) playerViews() []PlayerView {
	views := make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		views = append(views, PlayerView{
			Name:    p.Name,
			IsHost:  p.IsHost,
			IsReady: p.IsReady,
			Status:  p.Status,
		})
	}
	return views
}

func (r *Room) view() RoomView {
	v := RoomView{
		RoomID:    r.id,
		State:     r.state(),
		Players:   r.playerViews(),
		CreatedAt: r.createdAt,
	}
	if h := r.host(); h != nil {
		v.Host = h.Name
	}
	return v
}
