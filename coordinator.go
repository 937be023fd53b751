// Bingoroom Room Coordinator
//
// Players share a room code, ready up, and play one card together. Each turn
// a subject is shown to everyone; a player places it in a category, uses
// their wildcard, or skips. The server alone decides whether a placement is
// valid, which subject comes next, and when the game is over.
//
// Features:
// - One mutex per room; every operation runs to completion, publish included,
//   before the next one on the same room starts
// - Shared subject pool drawn from a shrinking prefix window
// - Wrong guesses and skips shrink the window, never below what was consumed
// - Boards stay private: the room sees scores, the actor sees their state
// - Host migrates to the earliest remaining joiner
// - Departed players keep their score on the leaderboard
// - game-over is announced exactly once per session
// - Room chat is relayed to everyone in the room

package main

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNameLength    = 32
	maxMessageLength = 500
)

// Coordinator applies player actions to rooms and publishes the results.
type Coordinator struct {
	cfg     *Config
	rooms   *Registry
	cards   CardProvider
	bus     Broadcaster
	now     func() time.Time
	newRand func() *rand.Rand
}

func newCoordinator(cfg *Config, cards CardProvider, bus Broadcaster) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		rooms:   newRegistry(cfg.roomCodeLength),
		cards:   cards,
		bus:     bus,
		now:     time.Now,
		newRand: newRand,
	}
}

// MoveResult is returned to the player who made a move.
type MoveResult struct {
	Valid    bool            `json:"valid"` // select-cell only
	Matches  []int           `json:"matches,omitempty"`
	State    PlayerStateView `json:"state"`
	Pool     PoolView        `json:"pool"`
	GameOver bool            `json:"gameOver"`
}

// Snapshot lets a reconnecting client rebuild its view.
type Snapshot struct {
	Room    RoomView     `json:"room"`
	Session *SessionView `json:"session,omitempty"`
}

// turnOutcome collects what a move settled, so the move's own event can be
// queued before the consequences it caused.
type turnOutcome struct {
	finished []finishedPlayer
	over     bool
}

type finishedPlayer struct {
	name   string
	reason string
}

// withRoom runs fn under the room lock, then publishes everything fn queued
// in order before the lock is released.
func (c *Coordinator) withRoom(ctx context.Context, roomID string, fn func(r *Room) error) error {
	r, err := c.rooms.get(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}

	err = fn(r)

	c.flush(ctx, r)

	return err
}

// flush publishes queued events. The state they describe is already
// committed, so delivery failures are logged and never undone.
func (c *Coordinator) flush(ctx context.Context, r *Room) {
	ctx = context.WithoutCancel(ctx)

	for _, o := range r.outbox {
		r.seq++
		env := Envelope{
			Event: o.event.EventName(),
			Room:  r.id,
			Seq:   r.seq,
			Data:  o.event,
		}

		var err error
		if o.to == "" {
			err = c.bus.Publish(ctx, r.id, env)
		} else {
			err = c.bus.PublishTo(ctx, r.id, o.to, env)
		}
		if err != nil {
			errorf("BROADCAST: %s #%d in room %s: %v", env.Event, env.Seq, r.id, err)
		}
	}
	r.outbox = nil

	if r.closed {
		if closer, ok := c.bus.(roomCloser); ok {
			closer.CloseRoom(r.id)
		}
	}
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// actor looks up name and records that it was heard from.
func (c *Coordinator) actor(r *Room, name string) (*Player, error) {
	p := r.player(name)
	if p == nil {
		return nil, ErrPlayerNotFound
	}

	now := c.now()
	p.LastHeartbeatAt = now
	r.lastActive = now

	return p, nil
}

// mover checks that name may act on the current subject.
func (c *Coordinator) mover(r *Room, name, subjectID string) (*Session, *PlayerState, error) {
	if _, err := c.actor(r, name); err != nil {
		return nil, nil, err
	}

	s := r.session
	if s == nil || s.over || s.current == nil {
		return nil, nil, ErrGameNotPlaying
	}

	ps := s.states[name]
	if ps == nil {
		return nil, nil, ErrPlayerNotFound
	}
	if ps.Finished {
		return nil, nil, ErrPlayerFinished
	}
	if subjectID != "" && subjectID != s.current.ID {
		return nil, nil, ErrStaleSubject
	}

	return s, ps, nil
}

func (c *Coordinator) CreateRoom(ctx context.Context, hostName string) (RoomView, error) {
	name, err := validName(hostName)
	if err != nil {
		return RoomView{}, err
	}

	now := c.now()

	r, err := c.rooms.create(func(id string) *Room {
		r := newRoom(id, c.newRand(), now)
		r.players = []*Player{{
			Name:            name,
			IsHost:          true,
			Status:          StatusActive,
			LastHeartbeatAt: now,
		}}
		return r
	})
	if err != nil {
		return RoomView{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	logf(c.cfg, "ROOMS: Created room %s for %q", r.id, name)

	return r.view(), nil
}

func (c *Coordinator) Join(ctx context.Context, roomID, playerName string) (RoomView, error) {
	var view RoomView

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		name, err := validName(playerName)
		if err != nil {
			return err
		}

		switch {
		case r.session != nil:
			return ErrGameInProgress
		case r.player(name) != nil:
			return ErrDuplicateName
		case len(r.players) >= c.cfg.maxPlayers:
			return ErrRoomFull
		}

		now := c.now()
		r.players = append(r.players, &Player{
			Name:            name,
			Status:          StatusActive,
			LastHeartbeatAt: now,
		})
		r.lastActive = now

		r.emit(PlayerJoined{Player: name, Players: r.playerViews()})

		logf(c.cfg, "ROOMS: %q joined room %s (%d players)", name, r.id, len(r.players))

		view = r.view()
		return nil
	})

	return view, err
}

func (c *Coordinator) ToggleReady(ctx context.Context, roomID, name string) (RoomView, error) {
	var view RoomView

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		p, err := c.actor(r, name)
		if err != nil {
			return err
		}
		if r.session != nil {
			return ErrGameInProgress
		}

		p.IsReady = !p.IsReady

		r.emit(PlayerReadyChanged{Player: p.Name, Ready: p.IsReady, Players: r.playerViews()})

		view = r.view()
		return nil
	})

	return view, err
}

func (c *Coordinator) StartGame(ctx context.Context, roomID, name string, mode GameMode) (*SessionView, error) {
	var view *SessionView

	switch mode {
	case "":
		mode = ModeClassic
	case ModeClassic, ModeTimed:
	default:
		return nil, wrapError(ErrBadRequest, errors.New("unknown mode "+string(mode)))
	}

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		p, err := c.actor(r, name)
		if err != nil {
			return err
		}

		switch {
		case !p.IsHost:
			return ErrNotHost
		case r.session != nil:
			return ErrGameInProgress
		case len(r.players) < c.cfg.minPlayers:
			return ErrNotEnoughPlayers
		case len(r.players) > c.cfg.maxPlayers:
			return ErrTooManyPlayers
		}
		for _, other := range r.players {
			if !other.IsReady {
				return ErrPlayersNotReady
			}
		}

		card, err := c.cards.Draw(ctx, r.lastCardID)
		if err != nil {
			var e *Error
			if errors.As(err, &e) {
				return err
			}
			return wrapError(ErrNoCards, err)
		}

		s := newSession(card, r.names(), mode, r.rng, c.now())
		r.session = s
		r.lastCardID = card.ID

		started := GameStarted{
			CardID:     card.ID,
			Mode:       mode,
			Categories: s.categoryViews(),
			Players:    slices.Clone(s.order),
			Pool:       s.poolView(),
		}
		if mode == ModeTimed {
			started.TurnSeconds = turnSeconds
		}
		r.emit(started)

		logf(c.cfg, "GAMES: Room %s started card %s (%s, %d players, %d categories, %d subjects)",
			r.id, card.ID, mode, len(s.order), len(s.categories), len(s.pool))

		view = s.view(name)
		return nil
	})

	return view, err
}

// advance runs once the acting player's move has consumed the current
// subject: it finishes a full board, ends the game when nobody present is
// left playing, and otherwise presents the next subject. When none is left,
// every present player is finished.
func (c *Coordinator) advance(r *Room, s *Session, name string, ps *PlayerState) turnOutcome {
	var out turnOutcome

	if s.boardFull(ps) && s.finish(name) {
		out.finished = append(out.finished, finishedPlayer{name, reasonBoardComplete})
	}

	if s.conclude() {
		out.over = true
		return out
	}

	if s.draw(r.rng) {
		return out
	}

	if s.finish(name) {
		out.finished = append(out.finished, finishedPlayer{name, reasonExhausted})
	}
	for _, other := range s.present() {
		if s.finish(other) {
			out.finished = append(out.finished, finishedPlayer{other, reasonExhausted})
		}
	}

	out.over = s.conclude()

	return out
}

// announce queues the consequences of a move after the move itself.
func (c *Coordinator) announce(r *Room, s *Session, out turnOutcome) {
	for _, f := range out.finished {
		r.emit(PlayerFinished{Player: f.name, Score: s.states[f.name].Score(), Reason: f.reason})
	}
	if out.over {
		c.gameOver(r, s)
	}
}

func (c *Coordinator) gameOver(r *Room, s *Session) {
	r.emit(GameOver{Scores: s.scores(), Winners: s.winners()})

	logf(c.cfg, "GAMES: Room %s finished card %s, winners %v", r.id, s.cardID, s.winners())
}

func (c *Coordinator) SelectCell(ctx context.Context, roomID, name string, categoryID int, subjectID string) (*MoveResult, error) {
	var res *MoveResult

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		s, ps, err := c.mover(r, name, subjectID)
		if err != nil {
			return err
		}

		cat, ok := s.category(categoryID)
		if !ok {
			return ErrInvalidCategory
		}
		if ps.has(categoryID) {
			return ErrCellTaken
		}

		valid := matches(*s.current, cat)

		penalty := 0
		if valid {
			ps.fill(categoryID)
		} else {
			penalty = c.cfg.wrongPenalty
		}
		s.consume(penalty)

		out := c.advance(r, s, name, ps)

		r.emit(CellSelected{Player: name, Score: ps.Score(), Filled: len(ps.SelectedCells), Pool: s.poolView()})
		r.emitTo(name, CellSelectedPrivate{CategoryID: categoryID, Valid: valid, State: stateView(name, ps)})
		c.announce(r, s, out)

		res = &MoveResult{
			Valid:    valid,
			State:    stateView(name, ps),
			Pool:     s.poolView(),
			GameOver: s.over,
		}
		return nil
	})

	return res, err
}

// UseWildcard fills every open category the current subject satisfies.
func (c *Coordinator) UseWildcard(ctx context.Context, roomID, name, subjectID string) (*MoveResult, error) {
	var res *MoveResult

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		s, ps, err := c.mover(r, name, subjectID)
		if err != nil {
			return err
		}
		if !ps.HasWildcard {
			return ErrNoWildcard
		}

		matched := s.openMatches(ps)
		for _, id := range matched {
			ps.fill(id)
		}
		ps.WildcardMatches = append(ps.WildcardMatches, matched...)
		ps.HasWildcard = false
		s.consume(0)

		out := c.advance(r, s, name, ps)

		r.emit(WildcardUsed{Player: name, Score: ps.Score(), Filled: len(ps.SelectedCells), Pool: s.poolView()})
		r.emitTo(name, WildcardUsedPrivate{Matches: cells(matched), State: stateView(name, ps)})
		c.announce(r, s, out)

		res = &MoveResult{
			Matches:  cells(matched),
			State:    stateView(name, ps),
			Pool:     s.poolView(),
			GameOver: s.over,
		}
		return nil
	})

	return res, err
}

// Skip passes on the current subject; reason is reasonSkip or reasonTimeout.
func (c *Coordinator) Skip(ctx context.Context, roomID, name, subjectID, reason string) (*MoveResult, error) {
	var res *MoveResult

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		s, ps, err := c.mover(r, name, subjectID)
		if err != nil {
			return err
		}

		s.consume(c.cfg.skipPenalty)

		out := c.advance(r, s, name, ps)

		r.emit(PlayerSkipped{Player: name, Reason: reason, Pool: s.poolView()})
		c.announce(r, s, out)

		res = &MoveResult{
			State:    stateView(name, ps),
			Pool:     s.poolView(),
			GameOver: s.over,
		}
		return nil
	})

	return res, err
}

// MarkFinished is idempotent: finishing twice, or after the game is over,
// returns the frozen state without publishing anything.
func (c *Coordinator) MarkFinished(ctx context.Context, roomID, name string) (PlayerStateView, error) {
	var view PlayerStateView

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		if _, err := c.actor(r, name); err != nil {
			return err
		}

		s := r.session
		if s == nil {
			return ErrGameNotPlaying
		}

		ps := s.states[name]
		if ps == nil {
			return ErrPlayerNotFound
		}

		var out turnOutcome
		if s.finish(name) {
			out.finished = append(out.finished, finishedPlayer{name, reasonRequested})
			out.over = s.conclude()
		}
		c.announce(r, s, out)

		view = stateView(name, ps)
		return nil
	})

	return view, err
}

// ResetGame discards the session and returns the room to waiting. It is a
// no-op when the room is already waiting.
func (c *Coordinator) ResetGame(ctx context.Context, roomID, name string) (RoomView, error) {
	var view RoomView

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		p, err := c.actor(r, name)
		if err != nil {
			return err
		}
		if !p.IsHost {
			return ErrNotHost
		}

		if r.session != nil {
			r.session = nil
			for _, other := range r.players {
				other.IsReady = false
			}

			r.emit(GameReset{Players: r.playerViews()})

			logf(c.cfg, "GAMES: Room %s reset by %q", r.id, name)
		}

		view = r.view()
		return nil
	})

	return view, err
}

// UpdateStatus records a heartbeat. Heartbeats keep players in the room but
// do not count as room activity.
func (c *Coordinator) UpdateStatus(ctx context.Context, roomID, name string, status LivenessStatus) (PlayerView, error) {
	var view PlayerView

	if status != StatusActive && status != StatusAway {
		return view, ErrInvalidStatus
	}

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		p := r.player(name)
		if p == nil {
			return ErrPlayerNotFound
		}

		p.LastHeartbeatAt = c.now()

		if p.Status != status {
			p.Status = status
			r.emit(PlayerStatusChanged{Player: p.Name, Status: status})
		}

		view = PlayerView{Name: p.Name, IsHost: p.IsHost, IsReady: p.IsReady, Status: p.Status}
		return nil
	})

	return view, err
}

// SendMessage relays a chat line to the whole room. Chat is allowed in every
// room state, including by players who have finished.
func (c *Coordinator) SendMessage(ctx context.Context, roomID, name, message string) (ChatMessage, error) {
	var msg ChatMessage

	message = strings.TrimSpace(message)
	if message == "" || utf8.RuneCountInString(message) > maxMessageLength {
		return msg, ErrInvalidMessage
	}

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		p, err := c.actor(r, name)
		if err != nil {
			return err
		}

		msg = ChatMessage{Player: p.Name, Message: message, SentAt: c.now()}
		r.emit(msg)

		return nil
	})

	return msg, err
}

func (c *Coordinator) Exit(ctx context.Context, roomID, name string) error {
	return c.withRoom(ctx, roomID, func(r *Room) error {
		if r.player(name) == nil {
			return ErrPlayerNotFound
		}

		r.lastActive = c.now()
		c.removePlayer(r, name, reasonExit)

		return nil
	})
}

func (c *Coordinator) Kick(ctx context.Context, roomID, name, target string) (RoomView, error) {
	var view RoomView

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		p, err := c.actor(r, name)
		if err != nil {
			return err
		}

		switch {
		case !p.IsHost:
			return ErrNotHost
		case target == p.Name:
			return ErrCannotKickSelf
		case r.player(target) == nil:
			return ErrPlayerNotFound
		}

		c.removePlayer(r, target, reasonKicked)

		view = r.view()
		return nil
	})

	return view, err
}

func (c *Coordinator) Snapshot(ctx context.Context, roomID, name string) (*Snapshot, error) {
	var snap *Snapshot

	err := c.withRoom(ctx, roomID, func(r *Room) error {
		if name != "" && r.player(name) == nil {
			return ErrPlayerNotFound
		}

		snap = &Snapshot{Room: r.view()}
		if r.session != nil {
			snap.Session = r.session.view(name)
		}
		return nil
	})

	return snap, err
}

// removePlayer takes name out of the room. A session keeps the player's
// state for the leaderboard, flagged disconnected. Host migration happens
// before the player list is published, so the list is already settled.
func (c *Coordinator) removePlayer(r *Room, name, reason string) {
	gone, ok := r.removePlayer(name)
	if !ok {
		return
	}
	gone.Status = StatusDisconnected

	s := r.session
	if s != nil {
		if ps := s.states[name]; ps != nil {
			ps.Disconnected = true
		}
	}

	promoted := r.settleHost()

	r.emit(PlayerLeft{Player: name, Reason: reason, Players: r.playerViews()})

	logf(c.cfg, "ROOMS: %q left room %s (%s, %d remaining)", name, r.id, reason, len(r.players))

	if len(r.players) == 0 {
		c.closeRoom(r, reasonEmpty)
		return
	}

	if promoted != nil {
		previous := ""
		if gone.IsHost {
			previous = gone.Name
		}
		r.emit(NewHostAssigned{Host: promoted.Name, Previous: previous})

		logf(c.cfg, "ROOMS: %q is now host of room %s", promoted.Name, r.id)
	}

	if s != nil && s.conclude() {
		c.gameOver(r, s)
	}
}

// closeRoom destroys r. Callers hold r.mu.
func (c *Coordinator) closeRoom(r *Room, reason string) {
	r.closed = true
	r.emit(RoomClosed{Reason: reason})
	c.rooms.remove(r)

	logf(c.cfg, "ROOMS: Closed room %s (%s)", r.id, reason)
}

// Sweep removes players whose heartbeats have lapsed and closes rooms idle
// longer than the session timeout.
func (c *Coordinator) Sweep(ctx context.Context) {
	now := c.now()

	for _, id := range c.rooms.ids() {
		err := c.withRoom(ctx, id, func(r *Room) error {
			if c.cfg.sessionTimeout > 0 && now.Sub(r.lastActive) > c.cfg.sessionTimeout {
				c.closeRoom(r, reasonIdle)
				return nil
			}

			var lapsed []string
			for _, p := range r.players {
				limit := c.cfg.heartbeatTimeout
				if p.Status == StatusAway {
					limit = c.cfg.awayTimeout
				}
				if now.Sub(p.LastHeartbeatAt) > limit {
					lapsed = append(lapsed, p.Name)
				}
			}

			for _, name := range lapsed {
				logf(c.cfg, "LIVENESS: No heartbeat from %q in room %s", name, r.id)
				c.removePlayer(r, name, reasonTimeout)
				if r.closed {
					break
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			errorf("LIVENESS: room %s: %v", id, err)
		}
	}
}
