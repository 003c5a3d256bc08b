package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected operation so the transport can map it to a status.
type Kind string

const (
	KindValidation Kind = "validation"
	KindPermission Kind = "permission"
	KindGameState  Kind = "game_state"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
)

// Code is a machine-readable error code.
type Code string

// Error is returned by every rejected Session operation. Two errors are equal
// under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Meta    map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// with returns a copy of the sentinel carrying extra context.
func (e *Error) with(kv ...string) *Error {
	out := &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Meta: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		out.Meta[kv[i]] = kv[i+1]
	}
	if len(out.Meta) > 0 {
		out.Message = fmt.Sprintf("%s %v", e.Message, out.Meta)
	}
	return out
}

var (
	ErrInvalidPlayerID    = newError(KindValidation, "INVALID_PLAYER_ID", "player id is required")
	ErrInvalidName        = newError(KindValidation, "INVALID_NAME", "display name must be 1-24 characters")
	ErrInvalidClue        = newError(KindValidation, "INVALID_CLUE", "clue must be 1-120 characters")
	ErrInvalidAvatar      = newError(KindValidation, "INVALID_AVATAR", "avatar reference is too long")
	ErrSecretTooShort     = newError(KindValidation, "SECRET_TOO_SHORT", "admin secret must be at least 4 characters")
	ErrSecretTooLong      = newError(KindValidation, "SECRET_TOO_LONG", "admin secret must be at most 72 bytes")
	ErrInvalidWinTarget   = newError(KindValidation, "INVALID_WIN_TARGET", "win target out of range")
	ErrInvalidUploadMode  = newError(KindValidation, "INVALID_UPLOAD_MODE", "unknown upload mode")
	ErrInvalidBoard       = newError(KindValidation, "INVALID_BOARD", "unknown board layout")
	ErrEmptyImage         = newError(KindValidation, "EMPTY_IMAGE", "card image is empty")
	ErrImageTooLarge      = newError(KindValidation, "IMAGE_TOO_LARGE", "card image exceeds size limit")
	ErrQuotaExceeded      = newError(KindValidation, "QUOTA_EXCEEDED", "upload quota reached")
	ErrPlayerExists       = newError(KindValidation, "PLAYER_EXISTS", "player already joined")
	ErrPlayerDisconnected = newError(KindValidation, "PLAYER_DISCONNECTED", "target player is not connected")
	ErrKickSelf           = newError(KindValidation, "KICK_SELF", "admin cannot kick themselves")
	ErrUnsupportedCommand = newError(KindValidation, "UNSUPPORTED_COMMAND", "unsupported command")

	ErrNotAdmin        = newError(KindPermission, "NOT_ADMIN", "admin only")
	ErrNotStoryteller  = newError(KindPermission, "NOT_STORYTELLER", "only the storyteller may do this")
	ErrIsStoryteller   = newError(KindPermission, "IS_STORYTELLER", "the storyteller may not do this")
	ErrUploadForbidden = newError(KindPermission, "UPLOAD_FORBIDDEN", "upload mode forbids this player")
	ErrNotCardOwner    = newError(KindPermission, "NOT_CARD_OWNER", "only the uploader or admin may delete a card")
	ErrWrongSecret     = newError(KindPermission, "WRONG_SECRET", "admin secret mismatch")
	ErrNoAdminSecret   = newError(KindPermission, "NO_ADMIN_SECRET", "admin secret has not been set")

	ErrCardNotInHand    = newError(KindGameState, "CARD_NOT_IN_HAND", "card is not in hand")
	ErrWrongPhase       = newError(KindGameState, "WRONG_PHASE", "action not allowed in this phase")
	ErrAlreadySubmitted = newError(KindGameState, "ALREADY_SUBMITTED", "already submitted this round")
	ErrAlreadyVoted     = newError(KindGameState, "ALREADY_VOTED", "already voted this round")
	ErrOwnCardVote      = newError(KindGameState, "OWN_CARD_VOTE", "cannot vote for your own card")
	ErrNotEnoughPlayers = newError(KindGameState, "NOT_ENOUGH_PLAYERS", "not enough players")
	ErrPoolTooSmall     = newError(KindGameState, "POOL_TOO_SMALL", "card pool is too small")
	ErrPoolLocked       = newError(KindGameState, "POOL_LOCKED", "card pool is locked")
	ErrGameInProgress   = newError(KindGameState, "GAME_IN_PROGRESS", "cannot join while a round is in progress")

	ErrPlayerNotFound = newError(KindNotFound, "PLAYER_NOT_FOUND", "player not found")
	ErrCardNotFound   = newError(KindNotFound, "CARD_NOT_FOUND", "card not found")

	ErrProcessing = newError(KindConflict, "PROCESSING", "another transition is in progress")
)

// KindOf returns the kind of a Session error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
