/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func errorf(format string, args ...any) {
	log.Printf("%s | ERROR: "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// humanReadableSize formats response sizes for log lines, in SI units.
func humanReadableSize(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}

	size, exp := float64(n)/1000, 0
	for size >= 1000 && exp < 5 {
		size /= 1000
		exp++
	}

	return fmt.Sprintf("%.1f %cB", size, "kMGTPE"[exp])
}

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindValidation   Kind = "validation_failure"
	KindInternal     Kind = "internal"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeRoomNotFound     Code = "ROOM_NOT_FOUND"
	CodePlayerNotFound   Code = "PLAYER_NOT_FOUND"
	CodeGameInProgress   Code = "GAME_IN_PROGRESS"
	CodeGameNotPlaying   Code = "GAME_NOT_PLAYING"
	CodeNotHost          Code = "NOT_HOST"
	CodeNotEnoughPlayers Code = "NOT_ENOUGH_PLAYERS"
	CodeTooManyPlayers   Code = "TOO_MANY_PLAYERS"
	CodePlayersNotReady  Code = "PLAYERS_NOT_READY"
	CodePlayerFinished   Code = "PLAYER_FINISHED"
	CodeNoWildcard       Code = "NO_WILDCARD"
	CodeStaleSubject     Code = "STALE_SUBJECT"
	CodeDuplicateName    Code = "DUPLICATE_NAME"
	CodeRoomFull         Code = "ROOM_FULL"
	CodeInvalidName      Code = "INVALID_NAME"
	CodeInvalidCategory  Code = "INVALID_CATEGORY"
	CodeCellTaken        Code = "CELL_TAKEN"
	CodeInvalidStatus    Code = "INVALID_STATUS"
	CodeInvalidMessage   Code = "INVALID_MESSAGE"
	CodeCannotKickSelf   Code = "CANNOT_KICK_SELF"
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeNoCards          Code = "NO_CARDS"
	CodeInternal         Code = "INTERNAL"
)

// Error is the coordinator's error type. Two errors are equal under
// errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// wrapError attaches cause to a copy of the sentinel e.
func wrapError(e *Error, cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Cause: cause}
}

var (
	ErrRoomNotFound   = newError(KindNotFound, CodeRoomNotFound, "room not found")
	ErrPlayerNotFound = newError(KindNotFound, CodePlayerNotFound, "player not found in room")

	ErrGameInProgress   = newError(KindInvalidState, CodeGameInProgress, "a game is already in progress")
	ErrGameNotPlaying   = newError(KindInvalidState, CodeGameNotPlaying, "no game is being played")
	ErrNotHost          = newError(KindInvalidState, CodeNotHost, "only the host may do that")
	ErrNotEnoughPlayers = newError(KindInvalidState, CodeNotEnoughPlayers, "not enough players to start")
	ErrTooManyPlayers   = newError(KindInvalidState, CodeTooManyPlayers, "too many players to start")
	ErrPlayersNotReady  = newError(KindInvalidState, CodePlayersNotReady, "every player must be ready")
	ErrPlayerFinished   = newError(KindInvalidState, CodePlayerFinished, "player has already finished")
	ErrNoWildcard       = newError(KindInvalidState, CodeNoWildcard, "wildcard already used")
	ErrStaleSubject     = newError(KindInvalidState, CodeStaleSubject, "subject is no longer current")

	ErrDuplicateName   = newError(KindValidation, CodeDuplicateName, "name already taken in this room")
	ErrRoomFull        = newError(KindValidation, CodeRoomFull, "room is full")
	ErrInvalidName     = newError(KindValidation, CodeInvalidName, "player name is required")
	ErrInvalidCategory = newError(KindValidation, CodeInvalidCategory, "category does not exist")
	ErrCellTaken       = newError(KindValidation, CodeCellTaken, "category already selected")
	ErrInvalidStatus   = newError(KindValidation, CodeInvalidStatus, "status must be active or away")
	ErrInvalidMessage  = newError(KindValidation, CodeInvalidMessage, "message must be 1 to 500 characters")
	ErrCannotKickSelf  = newError(KindValidation, CodeCannotKickSelf, "host cannot kick themselves")
	ErrBadRequest      = newError(KindValidation, CodeBadRequest, "malformed request")

	ErrNoCards = newError(KindInternal, CodeNoCards, "no cards available")
)

// errorKind reports the Kind of err, treating foreign errors as internal.
func errorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func errorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func httpStatus(err error) int {
	switch errorKind(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
