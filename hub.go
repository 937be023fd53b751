/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
	readLimit  = 4096
)

// ClientMessage is what a subscriber may send over its socket.
type ClientMessage struct {
	Type   string         `json:"type"`             // "status"
	Status LivenessStatus `json:"status,omitempty"` // status
}

type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	room   string
	player string // empty for spectators
}

// Hub is the in-process broadcast channel: one subscriber set per room,
// with private delivery by player name.
type Hub struct {
	cfg   *Config
	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:   cfg,
		rooms: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*Client]bool)
	}
	h.rooms[c.room][c] = true

	logf(h.cfg, "BROADCAST: Subscriber %s (%q) joined room %s", c.id, c.player, c.room)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c)
}

// dropLocked assumes h.mu is held.
func (h *Hub) dropLocked(c *Client) {
	clients, ok := h.rooms[c.room]
	if !ok || !clients[c] {
		return
	}

	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
}

func (h *Hub) Publish(ctx context.Context, room string, env Envelope) error {
	return h.fanOut(room, "", env)
}

func (h *Hub) PublishTo(ctx context.Context, room, player string, env Envelope) error {
	return h.fanOut(room, player, env)
}

// fanOut never blocks: a subscriber whose buffer is full is dropped and is
// expected to reconnect and fetch a snapshot.
func (h *Hub) fanOut(room, player string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return backoff.Permanent(err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[room] {
		if player != "" && c.player != player {
			continue
		}

		select {
		case c.send <- data:
		default:
			logf(h.cfg, "BROADCAST: Dropping slow subscriber %s in room %s", c.id, room)
			h.dropLocked(c)
		}
	}

	return nil
}

// CloseRoom disconnects every subscriber of room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[room] {
		h.dropLocked(c)
	}
}

func (h *Hub) subscribers(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.rooms[room])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveRoomSocket subscribes a websocket to a live room. Closing the socket
// does not remove the player: a suspended tab may come back, so removal is
// left to the liveness tracker.
func serveRoomSocket(cfg *Config, coord *Coordinator, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := normalizeRoomID(ps.ByName("room"))
		player := r.URL.Query().Get("player")

		if _, err := coord.rooms.get(roomID); err != nil {
			writeError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf("upgrade: %v", err)
			return
		}

		logf(cfg, "SERVE: Websocket for room %s (%q) to %s", roomID, player, realIP(r))

		client := &Client{
			id:     uuid.NewString(),
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			room:   roomID,
			player: player,
		}

		hub.register(client)

		go client.writePump()
		client.readPump(coord, hub)
	}
}

func (c *Client) readPump(coord *Coordinator, hub *Hub) {
	defer func() {
		hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "status":
			if c.player == "" {
				continue
			}
			if _, err := coord.UpdateStatus(context.Background(), c.room, c.player, msg.Status); err != nil {
				logf(coord.cfg, "BROADCAST: Status from %q in room %s rejected: %v", c.player, c.room, err)
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
