package game

import (
	"errors"
	"fmt"
)

// ActionError is a rejected action. It is reported to the acting identity only
// and never mutates session state.
type ActionError struct {
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	ErrNotYourTurn    = &ActionError{"NOT_YOUR_TURN", "It is not your turn"}
	ErrInvalidMove    = &ActionError{"INVALID_MOVE", "Invalid move"}
	ErrInvalidCard    = &ActionError{"INVALID_CARD", "That card cannot be played"}
	ErrMissingColor   = &ActionError{"MISSING_COLOR", "Choose red, blue, green or yellow for a wild card"}
	ErrColumnFull     = &ActionError{"COLUMN_FULL", "That column is full"}
	ErrLobbyFull      = &ActionError{"LOBBY_FULL", "The lobby is full"}
	ErrAlreadyJoined  = &ActionError{"ALREADY_JOINED", "You already joined this game"}
	ErrGameInProgress = &ActionError{"GAME_IN_PROGRESS", "A game is in progress, you are watching as a spectator"}
	ErrNotPlaying     = &ActionError{"NOT_PLAYING", "No game is in progress"}
	ErrNotInLobby     = &ActionError{"NOT_IN_LOBBY", "The game has already started"}
	ErrNotAPlayer     = &ActionError{"NOT_A_PLAYER", "You are not a player in this game"}
	ErrNotAMember     = &ActionError{"NOT_A_MEMBER", "You are not in this game"}
	ErrCannotStart    = &ActionError{"CANNOT_START", "Not enough players to start"}
	ErrSessionClosed  = &ActionError{"SESSION_CLOSED", "This game has ended"}
	ErrUnknownAction  = &ActionError{"UNKNOWN_ACTION", "Unknown action"}
)

// Code returns the stable code of a rejected action, or "INTERNAL" for any
// other error.
func Code(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "INTERNAL"
}

// IsRejection reports whether err is a rejected action rather than a fault.
func IsRejection(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}
