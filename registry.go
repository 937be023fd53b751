/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// roomCodeChars leaves out characters that are easy to misread aloud.
const roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 100

// Registry maps room codes to live rooms. It only guards the map itself;
// each Room carries its own lock. When both are needed, the room lock is
// taken first.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	codeLen int
	newCode func(n int) (string, error)
}

func newRegistry(codeLen int) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		codeLen: codeLen,
		newCode: randomCode,
	}
}

// randomCode generates a crypto-random room code of length n.
func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, n)
	for i := range out {
		out[i] = roomCodeChars[int(buf[i])%len(roomCodeChars)]
	}

	return string(out), nil
}

// newRand returns a math/rand source seeded from crypto/rand.
func newRand() *rand.Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

func normalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// create picks an unused code and registers the room build returns for it,
// regenerating on collision. The room is fully built before anyone else can
// look it up.
func (reg *Registry) create(build func(id string) *Room) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for range maxCodeAttempts {
		id, err := reg.newCode(reg.codeLen)
		if err != nil {
			return nil, wrapError(newError(KindInternal, CodeInternal, "room code generation failed"), err)
		}

		if _, exists := reg.rooms[id]; exists {
			continue
		}

		room := build(id)
		reg.rooms[id] = room

		return room, nil
	}

	return nil, newError(KindInternal, CodeInternal, fmt.Sprintf("no free room code after %d attempts", maxCodeAttempts))
}

func (reg *Registry) get(id string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeRoomID(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

// remove drops room from the map, unless the code has since been reused.
func (reg *Registry) remove(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.rooms[room.id] == room {
		delete(reg.rooms, room.id)
	}
}

// ids lists live room codes in sorted order.
func (reg *Registry) ids() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}

func (reg *Registry) count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}
