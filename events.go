/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "time"

// Event is one broadcast payload. Each variant has a fixed schema and
// names itself on the wire.
type Event interface {
	EventName() string
}

// Envelope is what subscribers receive.
type Envelope struct {
	Event string `json:"event"`
	Room  string `json:"room"`
	Seq   uint64 `json:"seq"`
	Data  Event  `json:"data"`
}

// outgoing is a queued event; to is empty for room-wide delivery.
type outgoing struct {
	event Event
	to    string
}

type PlayerView struct {
	Name    string         `json:"name"`
	IsHost  bool           `json:"isHost"`
	IsReady bool           `json:"isReady"`
	Status  LivenessStatus `json:"status"`
}

type RoomView struct {
	RoomID  string       `json:"roomId"`
	State   RoomState    `json:"state"`
	Host    string       `json:"host,omitempty"`
	Players []PlayerView `json:"players"`

	CreatedAt time.Time `json:"createdAt"`
}

// CategoryView and SubjectView carry no tags: clients only learn whether
// a subject fits a category from the outcome of a move.
type CategoryView struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type SubjectView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PoolView is the shared draw state every player sees after a move.
type PoolView struct {
	Subject      *SubjectView `json:"subject"`
	UsedCount    int          `json:"usedCount"`
	MaxAvailable int          `json:"maxAvailable"`
	PoolSize     int          `json:"poolSize"`
}

type PlayerStateView struct {
	Player          string `json:"player"`
	SelectedCells   []int  `json:"selectedCells"`
	ValidSelections []int  `json:"validSelections"`
	WildcardMatches []int  `json:"wildcardMatches"`
	HasWildcard     bool   `json:"hasWildcard"`
	Finished        bool   `json:"finished"`
	Disconnected    bool   `json:"disconnected"`
	Score           int    `json:"score"`
}

type ScoreView struct {
	Player       string `json:"player"`
	Score        int    `json:"score"`
	Filled       int    `json:"filled"`
	Finished     bool   `json:"finished"`
	Disconnected bool   `json:"disconnected"`
}

type SessionView struct {
	CardID     string           `json:"cardId"`
	Mode       GameMode         `json:"mode"`
	Categories []CategoryView   `json:"categories"`
	Pool       PoolView         `json:"pool"`
	Scores     []ScoreView      `json:"scores"`
	Over       bool             `json:"over"`
	StartedAt  time.Time        `json:"startedAt"`
	You        *PlayerStateView `json:"you,omitempty"`
}

type PlayerJoined struct {
	Player  string       `json:"player"`
	Players []PlayerView `json:"players"`
}

type PlayerReadyChanged struct {
	Player  string       `json:"player"`
	Ready   bool         `json:"ready"`
	Players []PlayerView `json:"players"`
}

type PlayerStatusChanged struct {
	Player string         `json:"player"`
	Status LivenessStatus `json:"status"`
}

type ChatMessage struct {
	Player  string    `json:"player"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

type GameStarted struct {
	CardID      string         `json:"cardId"`
	Mode        GameMode       `json:"mode"`
	TurnSeconds int            `json:"turnSeconds,omitempty"`
	Categories  []CategoryView `json:"categories"`
	Players     []string       `json:"players"`
	Pool        PoolView       `json:"pool"`
}

// CellSelected is the room-wide half of a selection: who moved, their
// running score, and the next subject. The board stays private.
type CellSelected struct {
	Player string   `json:"player"`
	Score  int      `json:"score"`
	Filled int      `json:"filled"`
	Pool   PoolView `json:"pool"`
}

// CellSelectedPrivate goes only to the player who moved.
type CellSelectedPrivate struct {
	CategoryID int             `json:"categoryId"`
	Valid      bool            `json:"valid"`
	State      PlayerStateView `json:"state"`
}

type WildcardUsed struct {
	Player string   `json:"player"`
	Score  int      `json:"score"`
	Filled int      `json:"filled"`
	Pool   PoolView `json:"pool"`
}

type WildcardUsedPrivate struct {
	Matches []int           `json:"matches"`
	State   PlayerStateView `json:"state"`
}

type PlayerSkipped struct {
	Player string   `json:"player"`
	Reason string   `json:"reason"`
	Pool   PoolView `json:"pool"`
}

type PlayerFinished struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

type GameOver struct {
	Scores  []ScoreView `json:"scores"`
	Winners []string    `json:"winners"`
}

type GameReset struct {
	Players []PlayerView `json:"players"`
}

type NewHostAssigned struct {
	Host     string `json:"host"`
	Previous string `json:"previous,omitempty"`
}

type PlayerLeft struct {
	Player  string       `json:"player"`
	Reason  string       `json:"reason"`
	Players []PlayerView `json:"players"`
}

type RoomClosed struct {
	Reason string `json:"reason"`
}

func (PlayerJoined) EventName() string        { return "player-joined" }
func (PlayerReadyChanged) EventName() string  { return "player-ready-changed" }
func (PlayerStatusChanged) EventName() string { return "player-status-changed" }
func (ChatMessage) EventName() string         { return "chat-message" }
func (GameStarted) EventName() string         { return "game-started" }
func (CellSelected) EventName() string        { return "cell-selected" }
func (CellSelectedPrivate) EventName() string { return "cell-selected" }
func (WildcardUsed) EventName() string        { return "wildcard-used" }
func (WildcardUsedPrivate) EventName() string { return "wildcard-used" }
func (PlayerSkipped) EventName() string       { return "player-skipped" }
func (PlayerFinished) EventName() string      { return "player-finished" }
func (GameOver) EventName() string            { return "game-over" }
func (GameReset) EventName() string           { return "game-reset" }
func (NewHostAssigned) EventName() string     { return "new-host-assigned" }
func (PlayerLeft) EventName() string          { return "player-left" }
func (RoomClosed) EventName() string          { return "room-closed" }

// Reasons carried by PlayerFinished, PlayerSkipped, PlayerLeft and RoomClosed.
const (
	reasonBoardComplete = "board-complete"
	reasonExhausted     = "exhausted"
	reasonRequested     = "requested"
	reasonSkip          = "skip"
	reasonTimeout       = "timeout"
	reasonExit          = "exit"
	reasonKicked        = "kicked"
	reasonIdle          = "idle"
	reasonEmpty         = "empty"
)
