/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	card := makeCard("c1", 16, 40, oneTag(16))
	rng := rand.New(rand.NewSource(7))

	s := newSession(card, []string{"A", "B"}, ModeClassic, rng, time.Now())

	assert.Len(t, s.pool, 40)
	assert.Equal(t, 40, s.maxAvailable)
	assert.Empty(t, s.used)
	require.NotNil(t, s.current)
	assert.Equal(t, []string{"A", "B"}, s.order)

	for _, name := range s.order {
		ps := s.states[name]
		require.NotNil(t, ps)
		assert.True(t, ps.HasWildcard)
		assert.Zero(t, ps.Score())
	}

	assert.Equal(t, "c1_s0", card.Subjects[0].ID, "the card itself is never shuffled")
}

func TestConsumeFloorsPenalty(t *testing.T) {
	tests := []struct {
		name     string
		pool     int
		used     int
		penalty  int
		wantMax  int
		wantUsed int
	}{
		{"no penalty", 40, 0, 0, 40, 1},
		{"wrong guess", 40, 1, 2, 38, 2},
		{"floored at presented count", 5, 3, 2, 4, 4},
		{"large penalty", 40, 10, 100, 11, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := makeCard("c", 4, tt.pool, noTags)
			rng := rand.New(rand.NewSource(1))
			s := newSession(card, []string{"A"}, ModeClassic, rng, time.Now())

			for range tt.used {
				s.consume(0)
				require.True(t, s.draw(rng))
			}
			s.consume(tt.penalty)

			assert.Equal(t, tt.wantMax, s.maxAvailable)
			assert.Len(t, s.used, tt.wantUsed)
			assert.Nil(t, s.current)
		})
	}
}

func TestPoolInvariantsUnderRandomPlay(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		card := makeCard("c", 16, 40, oneTag(16))
		s := newSession(card, []string{"A"}, ModeClassic, rng, time.Now())

		for moves := 0; ; moves++ {
			require.Less(t, moves, 41, "seed %d: more moves than subjects", seed)
			require.NotNil(t, s.current)

			idx := -1
			for i := range s.pool[:s.maxAvailable] {
				if s.pool[i].ID == s.current.ID {
					idx = i
				}
			}
			require.GreaterOrEqual(t, idx, 0, "seed %d: subject drawn outside the window", seed)
			_, seen := s.used[s.current.ID]
			require.False(t, seen, "seed %d: subject presented twice", seed)

			s.consume(rng.Intn(3))

			require.GreaterOrEqual(t, s.maxAvailable, len(s.used), "seed %d", seed)

			if !s.draw(rng) {
				assert.Equal(t, s.maxAvailable, len(s.used), "seed %d: exhausted with subjects left", seed)
				break
			}

			assert.Less(t, len(s.used), s.maxAvailable, "seed %d", seed)
		}
	}
}

func TestOpenMatchesSkipsFilledCells(t *testing.T) {
	card := makeCard("c", 4, 1, allTags(4))
	rng := rand.New(rand.NewSource(1))
	s := newSession(card, []string{"A"}, ModeClassic, rng, time.Now())

	ps := s.states["A"]
	ps.fill(2)

	assert.Equal(t, []int{0, 1, 3}, s.openMatches(ps))
}

func TestWinnersSharesTies(t *testing.T) {
	card := makeCard("c", 4, 4, oneTag(4))
	rng := rand.New(rand.NewSource(1))
	s := newSession(card, []string{"A", "B", "C"}, ModeClassic, rng, time.Now())

	s.states["A"].fill(0)
	s.states["C"].fill(1)

	assert.Equal(t, []string{"A", "C"}, s.winners())
}
