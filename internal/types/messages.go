package types

import (
	"errors"

	"github.com/avialu/dixit-sub000/internal/engine"
)

// Client -> Server
//
// Every websocket frame is one ClientMessage. Type is an engine command name
// such as "StorytellerSubmit" or "Vote". The acting player comes from the
// session token, never from the message.
type ClientMessage struct {
	Type       string                `json:"type"`
	RequestID  string                `json:"request_id,omitempty"`
	TargetID   string                `json:"target_id,omitempty"`
	CardID     string                `json:"card_id,omitempty"`
	Clue       string                `json:"clue,omitempty"`
	Name       string                `json:"name,omitempty"`
	Secret     string                `json:"secret,omitempty"`
	Avatar     string                `json:"avatar,omitempty"`
	Image      []byte                `json:"image,omitempty"`
	UploadMode string                `json:"upload_mode,omitempty"`
	WinTarget  int                   `json:"win_target,omitempty"`
	Board      *engine.BoardSettings `json:"board,omitempty"`
}

// Server -> Client
const (
	MsgSnapshot = "StateSnapshot"
	MsgAck      = "Ack"
	MsgError    = "Error"
)

type ServerMessage struct {
	Type      string             `json:"type"`
	RequestID string             `json:"request_id,omitempty"`
	Version   int                `json:"version,omitempty"`
	Room      *engine.RoomView   `json:"room,omitempty"`
	You       *engine.PlayerView `json:"you,omitempty"`
	Events    []engine.Event     `json:"events,omitempty"`
	Error     *ErrorBody         `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Kind    string            `json:"kind,omitempty"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// NewErrorBody describes err for a client. Errors the engine did not produce
// are reported as internal without detail.
func NewErrorBody(err error) *ErrorBody {
	var e *engine.Error
	if errors.As(err, &e) {
		return &ErrorBody{Code: string(e.Code), Kind: string(e.Kind), Message: e.Message, Meta: e.Meta}
	}
	return &ErrorBody{Code: "INTERNAL", Message: "internal error"}
}
