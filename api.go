/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

const maxBodyBytes int64 = 64 << 10

type createRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type roomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type startGameRequest struct {
	RoomID     string   `json:"roomId"`
	PlayerName string   `json:"playerName"`
	Mode       GameMode `json:"mode"`
}

type selectCellRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	CategoryID *int   `json:"categoryId"`
	SubjectID  string `json:"subjectId"`
}

type moveRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	SubjectID  string `json:"subjectId"`
}

type statusRequest struct {
	RoomID     string         `json:"roomId"`
	PlayerName string         `json:"playerName"`
	Status     LivenessStatus `json:"status"`
}

type kickRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	Target     string `json:"target"`
}

type messageRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type errorBody struct {
	Error   Code   `json:"error"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

type okBody struct {
	OK bool `json:"ok"`
}

// decode reads a single JSON object. Unknown fields are rejected, so a
// client cannot hand the server its own version of the game history.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return wrapError(ErrBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return wrapError(ErrBadRequest, errors.New("body must hold a single JSON object"))
	}

	return nil
}

func requireRoom(roomID, playerName string) error {
	switch {
	case roomID == "":
		return wrapError(ErrBadRequest, errors.New("roomId is required"))
	case playerName == "":
		return wrapError(ErrBadRequest, errors.New("playerName is required"))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	return w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)

	body := errorBody{
		Error:   errorCode(err),
		Kind:    errorKind(err),
		Message: err.Error(),
	}
	if status == http.StatusInternalServerError {
		errorf("%v", err)
		body.Message = "an internal error occurred"
	}

	_, _ = writeJSON(w, status, body)
}

// apiHandler decodes a T, runs fn, and writes its result as JSON.
func apiHandler[T any](cfg *Config, errs chan<- error, name string, fn func(ctx context.Context, req *T) (any, error)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		var req T
		if err := decode(w, r, &req); err != nil {
			logf(cfg, "SERVE: Rejected %s from %s: %v", name, realIP(r), err)
			writeError(w, err)
			return
		}

		out, err := fn(r.Context(), &req)
		if err != nil {
			logf(cfg, "SERVE: Rejected %s from %s: %v", name, realIP(r), err)
			writeError(w, err)
			return
		}

		written, err := writeJSON(w, http.StatusOK, out)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: %s (%s) to %s in %s",
			name,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveSnapshot(cfg *Config, coord *Coordinator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		snap, err := coord.Snapshot(r.Context(), normalizeRoomID(ps.ByName("room")), r.URL.Query().Get("player"))
		if err != nil {
			writeError(w, err)
			return
		}

		written, err := writeJSON(w, http.StatusOK, snap)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Snapshot of room %s (%s) to %s in %s",
			snap.Room.RoomID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// registerAPI wires every room action. hub is nil when events go through a
// hosted broadcaster, in which case no websocket route is served.
func registerAPI(cfg *Config, mux *httprouter.Router, coord *Coordinator, hub *Hub, errs chan<- error) {
	api := cfg.prefix + "/api"

	mux.POST(api+"/create-room", apiHandler(cfg, errs, "create-room", func(ctx context.Context, req *createRoomRequest) (any, error) {
		return coord.CreateRoom(ctx, req.PlayerName)
	}))

	mux.POST(api+"/join-room", apiHandler(cfg, errs, "join-room", func(ctx context.Context, req *roomRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.Join(ctx, req.RoomID, req.PlayerName)
	}))

	mux.POST(api+"/toggle-ready", apiHandler(cfg, errs, "toggle-ready", func(ctx context.Context, req *roomRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.ToggleReady(ctx, req.RoomID, req.PlayerName)
	}))

	mux.POST(api+"/start-game", apiHandler(cfg, errs, "start-game", func(ctx context.Context, req *startGameRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.StartGame(ctx, req.RoomID, req.PlayerName, req.Mode)
	}))

	mux.POST(api+"/select-cell", apiHandler(cfg, errs, "select-cell", func(ctx context.Context, req *selectCellRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		if req.CategoryID == nil {
			return nil, wrapError(ErrBadRequest, errors.New("categoryId is required"))
		}
		return coord.SelectCell(ctx, req.RoomID, req.PlayerName, *req.CategoryID, req.SubjectID)
	}))

	mux.POST(api+"/use-wildcard", apiHandler(cfg, errs, "use-wildcard", func(ctx context.Context, req *moveRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.UseWildcard(ctx, req.RoomID, req.PlayerName, req.SubjectID)
	}))

	mux.POST(api+"/skip-turn", apiHandler(cfg, errs, "skip-turn", func(ctx context.Context, req *moveRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.Skip(ctx, req.RoomID, req.PlayerName, req.SubjectID, reasonSkip)
	}))

	mux.POST(api+"/time-up", apiHandler(cfg, errs, "time-up", func(ctx context.Context, req *moveRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.Skip(ctx, req.RoomID, req.PlayerName, req.SubjectID, reasonTimeout)
	}))

	mux.POST(api+"/player-finished", apiHandler(cfg, errs, "player-finished", func(ctx context.Context, req *roomRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.MarkFinished(ctx, req.RoomID, req.PlayerName)
	}))

	mux.POST(api+"/update-status", apiHandler(cfg, errs, "update-status", func(ctx context.Context, req *statusRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.UpdateStatus(ctx, req.RoomID, req.PlayerName, req.Status)
	}))

	mux.POST(api+"/send-message", apiHandler(cfg, errs, "send-message", func(ctx context.Context, req *messageRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.SendMessage(ctx, req.RoomID, req.PlayerName, req.Message)
	}))

	mux.POST(api+"/exit-room", apiHandler(cfg, errs, "exit-room", func(ctx context.Context, req *roomRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		if err := coord.Exit(ctx, req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return okBody{OK: true}, nil
	}))

	mux.POST(api+"/kick-player", apiHandler(cfg, errs, "kick-player", func(ctx context.Context, req *kickRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.Kick(ctx, req.RoomID, req.PlayerName, req.Target)
	}))

	mux.POST(api+"/reset-game", apiHandler(cfg, errs, "reset-game", func(ctx context.Context, req *roomRequest) (any, error) {
		if err := requireRoom(req.RoomID, req.PlayerName); err != nil {
			return nil, err
		}
		return coord.ResetGame(ctx, req.RoomID, req.PlayerName)
	}))

	mux.GET(api+"/rooms/:room", serveSnapshot(cfg, coord, errs))

	mux.GET(api+"/rooms/:room/qr", serveQR(cfg, coord))

	if hub != nil {
		mux.GET(api+"/rooms/:room/ws", serveRoomSocket(cfg, coord, hub))
	}
}
