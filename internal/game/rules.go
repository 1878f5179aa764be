package game

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindUno        Kind = "uno"
	KindPuissance4 Kind = "p4"
)

// Kinds lists every turn-based game served by the hub.
var Kinds = []Kind{KindUno, KindPuissance4}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Spectator is the viewer index passed to Rules.View for observers.
const Spectator = -1

// Rules is the game-specific half of a turn-based session. Player indexes are
// positions in the turn order fixed at Start. The session serializes every
// call, so implementations need no locking of their own.
type Rules[M any] interface {
	MinPlayers() int
	MaxPlayers() int

	// Start deals the initial state for players in turn order.
	Start(players []string) error

	// Current returns the index of the turn holder.
	Current() int

	// DecodeMove turns a client action into a move. Unknown actions return
	// ErrUnknownAction.
	DecodeMove(action string, payload json.RawMessage) (M, error)

	// Apply validates and applies a move for the turn holder. A returned
	// error means nothing was mutated.
	Apply(player int, move M) (Outcome, error)

	// Timeout runs the default action for a turn holder who let the clock
	// run out. ok is false for games without one.
	Timeout(player int) (out Outcome, ok bool)

	// Remove drops a player from a game that keeps going without them.
	Remove(player int) error

	// View projects the state for one viewer, hiding what they may not see.
	View(viewer int) any
}

// Outcome describes the result of an applied move.
type Outcome struct {
	Message  string
	Finished bool
	Draw     bool
	Winner   int
}

// Continue is an outcome that hands the turn on.
func Continue(message string) Outcome {
	return Outcome{Message: message, Winner: -1}
}

// Win ends the game with player as the winner.
func Win(player int, message string) Outcome {
	return Outcome{Message: message, Finished: true, Winner: player}
}

// Draw ends the game without a winner.
func Draw(message string) Outcome {
	return Outcome{Message: message, Finished: true, Draw: true, Winner: -1}
}

// Result is the terminal record of a session, handed to the persistence bridge.
type Result struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"game"`
	Room       string    `json:"room"`
	Players    []string  `json:"players"`
	Winner     string    `json:"winner,omitempty"`
	Draw       bool      `json:"draw,omitempty"`
	Aborted    bool      `json:"aborted,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}
