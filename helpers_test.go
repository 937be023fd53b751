/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type delivery struct {
	room string
	to   string
	env  Envelope
}

// recorder is a Broadcaster that keeps everything it is given.
type recorder struct {
	mu     sync.Mutex
	sent   []delivery
	closed []string
}

func (r *recorder) Publish(ctx context.Context, room string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, delivery{room: room, env: env})
	return nil
}

func (r *recorder) PublishTo(ctx context.Context, room, player string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, delivery{room: room, to: player, env: env})
	return nil
}

func (r *recorder) CloseRoom(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = append(r.closed, room)
}

func (r *recorder) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]delivery(nil), r.sent...)
}

// named returns deliveries of one event name, room-wide and private alike.
func (r *recorder) named(event string) []delivery {
	var out []delivery
	for _, d := range r.all() {
		if d.env.Event == event {
			out = append(out, d)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

// staticDeck always deals the same cards, in order.
type staticDeck struct {
	cards []*Card
}

func (d *staticDeck) Draw(ctx context.Context, exclude string) (*Card, error) {
	for _, c := range d.cards {
		if c.ID != exclude {
			return c, nil
		}
	}
	if len(d.cards) == 0 {
		return nil, ErrNoCards
	}
	return d.cards[0], nil
}

// makeCard builds a card with numCategories single-tag categories (tag
// "t<i>") and numSubjects subjects; subject j carries the tags tagsFor(j).
func makeCard(id string, numCategories, numSubjects int, tagsFor func(j int) []string) *Card {
	card := &Card{ID: id}

	for i := range numCategories {
		card.Categories = append(card.Categories, Category{
			ID:           i,
			Name:         fmt.Sprintf("Category %d", i),
			RequiredTags: []string{fmt.Sprintf("t%d", i)},
		})
	}

	for j := range numSubjects {
		card.Subjects = append(card.Subjects, Subject{
			ID:   fmt.Sprintf("%s_s%d", id, j),
			Name: fmt.Sprintf("Subject %d", j),
			Tags: tagsFor(j),
		})
	}

	return card
}

// oneTag gives subject j exactly one tag, so every subject fits exactly one
// category.
func oneTag(numCategories int) func(j int) []string {
	return func(j int) []string {
		return []string{fmt.Sprintf("t%d", j%numCategories)}
	}
}

func allTags(numCategories int) func(j int) []string {
	return func(int) []string {
		tags := make([]string, 0, numCategories)
		for i := range numCategories {
			tags = append(tags, fmt.Sprintf("t%d", i))
		}
		return tags
	}
}

func noTags(int) []string {
	return []string{"none"}
}

type harness struct {
	coord *Coordinator
	bus   *recorder
	clock *fakeClock
	cfg   *Config
}

func newHarness(t *testing.T, cards ...*Card) *harness {
	t.Helper()

	if len(cards) == 0 {
		cards = []*Card{makeCard("c1", 16, 40, oneTag(16))}
	}

	cfg := defaultConfig()
	bus := &recorder{}
	clock := newFakeClock()

	coord := newCoordinator(cfg, &staticDeck{cards: cards}, bus)
	coord.now = clock.Now

	var seed int64
	coord.newRand = func() *rand.Rand {
		seed++
		return rand.New(rand.NewSource(seed))
	}

	return &harness{coord: coord, bus: bus, clock: clock, cfg: cfg}
}

// lobby creates a room hosted by names[0] and joins the rest.
func (h *harness) lobby(t *testing.T, names ...string) string {
	t.Helper()
	ctx := context.Background()

	view, err := h.coord.CreateRoom(ctx, names[0])
	require.NoError(t, err)

	for _, name := range names[1:] {
		_, err := h.coord.Join(ctx, view.RoomID, name)
		require.NoError(t, err)
	}

	return view.RoomID
}

// start readies everyone and starts a classic game as the host.
func (h *harness) start(t *testing.T, roomID string) {
	t.Helper()
	ctx := context.Background()

	room := h.room(t, roomID)
	for _, name := range room.names() {
		_, err := h.coord.ToggleReady(ctx, roomID, name)
		require.NoError(t, err)
	}

	_, err := h.coord.StartGame(ctx, roomID, room.host().Name, ModeClassic)
	require.NoError(t, err)
}

func (h *harness) room(t *testing.T, roomID string) *Room {
	t.Helper()

	r, err := h.coord.rooms.get(roomID)
	require.NoError(t, err)
	return r
}

func (h *harness) session(t *testing.T, roomID string) *Session {
	t.Helper()

	s := h.room(t, roomID).session
	require.NotNil(t, s)
	return s
}

// categoryFor finds an open category for player that the current subject
// does (want=true) or does not (want=false) satisfy.
func categoryFor(t *testing.T, s *Session, player string, want bool) int {
	t.Helper()
	require.NotNil(t, s.current)

	ps := s.states[player]
	for _, c := range s.categories {
		if ps.has(c.ID) {
			continue
		}
		if matches(*s.current, c) == want {
			return c.ID
		}
	}

	t.Fatalf("no open category with match=%v for %q", want, player)
	return -1
}
