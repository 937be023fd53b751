/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand"
	"slices"
	"time"
)

type GameMode string

const (
	ModeClassic GameMode = "classic"
	ModeTimed   GameMode = "timed"

	// turnSeconds is the client-side countdown announced for timed games.
	turnSeconds = 10
)

// PlayerState is one player's board within a session.
type PlayerState struct {
	SelectedCells   []int
	ValidSelections []int
	WildcardMatches []int
	HasWildcard     bool
	Finished        bool
	Disconnected    bool
}

func (ps *PlayerState) Score() int {
	return len(ps.ValidSelections)
}

func (ps *PlayerState) has(categoryID int) bool {
	return slices.Contains(ps.SelectedCells, categoryID)
}

func (ps *PlayerState) fill(categoryID int) {
	ps.SelectedCells = append(ps.SelectedCells, categoryID)
	ps.ValidSelections = append(ps.ValidSelections, categoryID)
}

// Session is one game on one card. The subject pool is shared by all
// players: a subject is consumed by whoever acts on it first.
type Session struct {
	cardID       string
	mode         GameMode
	categories   []Category
	pool         []Subject // shuffled once at start, never re-sampled
	current      *Subject
	used         map[string]struct{}
	maxAvailable int
	order        []string // players present at start, in join order
	states       map[string]*PlayerState
	over         bool
	startedAt    time.Time
}

func newSession(card *Card, players []string, mode GameMode, rng *rand.Rand, now time.Time) *Session {
	pool := slices.Clone(card.Subjects)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	s := &Session{
		cardID:       card.ID,
		mode:         mode,
		categories:   slices.Clone(card.Categories),
		pool:         pool,
		used:         make(map[string]struct{}),
		maxAvailable: len(pool),
		order:        slices.Clone(players),
		states:       make(map[string]*PlayerState, len(players)),
		startedAt:    now,
	}

	for _, name := range players {
		s.states[name] = &PlayerState{HasWildcard: true}
	}

	s.draw(rng)

	return s
}

// consume retires the current subject. A positive penalty shrinks the
// availability window, but never below the number of subjects presented so
// far (the current one included).
func (s *Session) consume(penalty int) {
	if s.current == nil {
		return
	}

	if penalty > 0 {
		s.maxAvailable = max(s.maxAvailable-penalty, len(s.used)+1)
	}

	s.used[s.current.ID] = struct{}{}
	s.current = nil
}

// draw presents a random unused subject from the first maxAvailable entries
// of the pool. It reports false when none is left.
func (s *Session) draw(rng *rand.Rand) bool {
	s.current = nil

	if len(s.used) >= s.maxAvailable {
		return false
	}

	window := s.pool[:min(s.maxAvailable, len(s.pool))]
	eligible := make([]int, 0, len(window))
	for i, subj := range window {
		if _, ok := s.used[subj.ID]; !ok {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return false
	}

	s.current = &s.pool[eligible[rng.Intn(len(eligible))]]
	return true
}

func (s *Session) category(id int) (Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// finish marks name finished and reports whether this call changed anything.
func (s *Session) finish(name string) bool {
	ps := s.states[name]
	if ps == nil || ps.Finished {
		return false
	}
	ps.Finished = true
	return true
}

// conclude ends the session once every present player has finished. It
// reports whether this call ended it, so game-over is announced once.
func (s *Session) conclude() bool {
	if s.over || !s.allPresentFinished() {
		return false
	}
	s.over = true
	s.current = nil
	return true
}

// boardFull reports whether ps has a cell for every category.
func (s *Session) boardFull(ps *PlayerState) bool {
	return len(ps.SelectedCells) >= len(s.categories)
}

// openMatches lists, in board order, the categories ps has not filled that
// the current subject satisfies.
func (s *Session) openMatches(ps *PlayerState) []int {
	if s.current == nil {
		return nil
	}

	var out []int
	for _, c := range s.categories {
		if ps.has(c.ID) {
			continue
		}
		if matches(*s.current, c) {
			out = append(out, c.ID)
		}
	}
	return out
}

// present lists players still in the room that hold a state, in start order.
func (s *Session) present() []string {
	var out []string
	for _, name := range s.order {
		if ps := s.states[name]; ps != nil && !ps.Disconnected {
			out = append(out, name)
		}
	}
	return out
}

func (s *Session) allPresentFinished() bool {
	for _, name := range s.present() {
		if !s.states[name].Finished {
			return false
		}
	}
	return true
}

func (s *Session) scores() []ScoreView {
	out := make([]ScoreView, 0, len(s.order))
	for _, name := range s.order {
		ps := s.states[name]
		out = append(out, ScoreView{
			Player:       name,
			Score:        ps.Score(),
			Filled:       len(ps.SelectedCells),
			Finished:     ps.Finished,
			Disconnected: ps.Disconnected,
		})
	}
	return out
}

// winners names every player holding the top score.
func (s *Session) winners() []string {
	best := -1
	var out []string
	for _, name := range s.order {
		score := s.states[name].Score()
		switch {
		case score > best:
			best = score
			out = []string{name}
		case score == best:
			out = append(out, name)
		}
	}
	return out
}

func (s *Session) categoryViews() []CategoryView {
	out := make([]CategoryView, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, CategoryView{ID: c.ID, Name: c.Name})
	}
	return out
}

func (s *Session) subjectView() *SubjectView {
	if s.current == nil {
		return nil
	}
	return &SubjectView{ID: s.current.ID, Name: s.current.Name}
}

func (s *Session) poolView() PoolView {
	return PoolView{
		Subject:      s.subjectView(),
		UsedCount:    len(s.used),
		MaxAvailable: s.maxAvailable,
		PoolSize:     len(s.pool),
	}
}

func (s *Session) view(player string) *SessionView {
	v := &SessionView{
		CardID:     s.cardID,
		Mode:       s.mode,
		Categories: s.categoryViews(),
		Pool:       s.poolView(),
		Scores:     s.scores(),
		Over:       s.over,
		StartedAt:  s.startedAt,
	}
	if ps := s.states[player]; ps != nil {
		st := stateView(player, ps)
		v.You = &st
	}
	return v
}

func stateView(player string, ps *PlayerState) PlayerStateView {
	return PlayerStateView{
		Player:          player,
		SelectedCells:   cells(ps.SelectedCells),
		ValidSelections: cells(ps.ValidSelections),
		WildcardMatches: cells(ps.WildcardMatches),
		HasWildcard:     ps.HasWildcard,
		Finished:        ps.Finished,
		Disconnected:    ps.Disconnected,
		Score:           ps.Score(),
	}
}

// cells copies ids so that an empty board encodes as [] rather than null.
func cells(ids []int) []int {
	return append(make([]int, 0, len(ids)), ids...)
}
