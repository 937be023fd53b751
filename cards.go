/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"math/rand"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed cards/*.json
var builtinCards embed.FS

// Category is one board cell. A subject fills it only when it carries
// every tag in RequiredTags.
type Category struct {
	ID           int
	Name         string
	RequiredTags []string
}

// Subject is the entity presented to players each turn.
type Subject struct {
	ID   string
	Name string
	Tags []string
}

type Card struct {
	ID         string
	Categories []Category
	Subjects   []Subject
}

// matches reports whether s carries every tag c requires.
func matches(s Subject, c Category) bool {
	if len(c.RequiredTags) == 0 {
		return false
	}

	have := make(map[string]struct{}, len(s.Tags))
	for _, t := range s.Tags {
		have[t] = struct{}{}
	}

	for _, t := range c.RequiredTags {
		if _, ok := have[t]; !ok {
			return false
		}
	}

	return true
}

// CardProvider hands out game cards. Draw avoids returning the card with id
// exclude when it has any other choice.
type CardProvider interface {
	Draw(ctx context.Context, exclude string) (*Card, error)
}

// cardFile is the on-disk card layout: each remit group is a category, each
// player is a subject whose v lists the tags it carries.
type cardFile struct {
	GameData struct {
		Remit [][]struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Type        int    `json:"type"`
			DisplayName string `json:"displayName"`
		} `json:"remit"`
		Players []struct {
			ID     string   `json:"id"`
			Family string   `json:"f"`
			Given  string   `json:"g"`
			Tags   []string `json:"v"`
		} `json:"players"`
	} `json:"gameData"`
}

func parseCard(id string, data []byte) (*Card, error) {
	var f cardFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("card %s: %w", id, err)
	}

	card := &Card{ID: id}

	for i, group := range f.GameData.Remit {
		names := make([]string, 0, len(group))
		tags := make([]string, 0, len(group))
		for _, item := range group {
			if item.ID == "" {
				continue
			}
			tags = append(tags, item.ID)
			name := item.DisplayName
			if name == "" {
				name = item.Name
			}
			names = append(names, name)
		}
		if len(tags) == 0 {
			return nil, fmt.Errorf("card %s: category %d has no requirements", id, i)
		}
		card.Categories = append(card.Categories, Category{
			ID:           len(card.Categories),
			Name:         strings.Join(names, " / "),
			RequiredTags: tags,
		})
	}

	seen := make(map[string]bool, len(f.GameData.Players))
	for _, p := range f.GameData.Players {
		if p.ID == "" || seen[p.ID] {
			return nil, fmt.Errorf("card %s: missing or duplicate subject id %q", id, p.ID)
		}
		seen[p.ID] = true
		card.Subjects = append(card.Subjects, Subject{
			ID:   p.ID,
			Name: strings.TrimSpace(p.Given + " " + p.Family),
			Tags: append([]string(nil), p.Tags...),
		})
	}

	if len(card.Categories) == 0 || len(card.Subjects) == 0 {
		return nil, fmt.Errorf("card %s: needs at least one category and one subject", id)
	}

	return card, nil
}

// fsDeck serves cards loaded once from a filesystem.
type fsDeck struct {
	mu    sync.Mutex
	rng   *rand.Rand
	cards []*Card
}

func loadDeck(fsys fs.FS, dir string, rng *rand.Rand) (*fsDeck, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	deck := &fsDeck{rng: rng}

	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		card, err := parseCard(strings.TrimSuffix(e.Name(), ".json"), data)
		if err != nil {
			return nil, err
		}

		deck.cards = append(deck.cards, card)
	}

	if len(deck.cards) == 0 {
		return nil, fmt.Errorf("no cards found in %s", dir)
	}

	sort.Slice(deck.cards, func(i, j int) bool { return deck.cards[i].ID < deck.cards[j].ID })

	return deck, nil
}

func (d *fsDeck) Draw(ctx context.Context, exclude string) (*Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]*Card, 0, len(d.cards))
	for _, c := range d.cards {
		if c.ID != exclude {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		candidates = d.cards
	}
	if len(candidates) == 0 {
		return nil, ErrNoCards
	}

	d.mu.Lock()
	i := d.rng.Intn(len(candidates))
	d.mu.Unlock()

	return candidates[i], nil
}
