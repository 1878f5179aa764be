package server

import (
	"encoding/json"
	"strings"

	"gameshub-server/internal/game"
)

// ClientMessage is every frame a client sends. Type is either a hub event
// ("ping", "room:create", "leaderboard") or "<game>:<action>", e.g. "uno:play".
// Room defaults to the shared main room of that game.
type ClientMessage struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is every frame the server sends. Code is set on "error"
// frames only, next to the human-readable payload string.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	Code    string `json:"code,omitempty"`
}

// errorFrame builds the "error" frame for err: the payload is the message a
// player can read, the code is the stable machine-readable one.
func errorFrame(err error) ServerMessage {
	code := game.Code(err)
	return ServerMessage{
		Type:    "error",
		Payload: strings.TrimPrefix(err.Error(), code+": "),
		Code:    code,
	}
}
