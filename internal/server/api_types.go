package server

import (
	"gameshub-server/internal/game"
	"gameshub-server/internal/store"
)

// ============================================================================
// CONNECTION (welcome, disconnected_elsewhere)
// ============================================================================
// tygo:generate
type WelcomeMessage struct {
	Pseudo       string      `json:"pseudo"`
	ConnectionID string      `json:"connectionId"`
	Games        []game.Kind `json:"games"`
}

// tygo:generate
type DisconnectedElsewhereMessage struct {
	Message string `json:"message"`
}

// ============================================================================
// CREATE ROOM (room:create)
// ============================================================================
// tygo:generate
type CreateRoomRequest struct {
	Game game.Kind `json:"game"`
}

// tygo:generate
type RoomCreatedResponse struct {
	Game      game.Kind `json:"game"`
	Room      string    `json:"room"`
	JoinURL   string    `json:"joinUrl"`
	QRCodeURL string    `json:"qrCodeUrl"`
}

// ============================================================================
// LEADERBOARD (leaderboard request and push)
// ============================================================================
// tygo:generate
type LeaderboardRequest struct {
	Game  game.Kind `json:"game"`
	Limit int       `json:"limit,omitempty"`
}

// tygo:generate
type LeaderboardMessage struct {
	Game    game.Kind     `json:"game"`
	Entries []store.Entry `json:"entries"`
}

// ============================================================================
// HTTP
// ============================================================================
// tygo:generate
type RoomSummary struct {
	Game       game.Kind   `json:"game"`
	Room       string      `json:"room"`
	Status     game.Status `json:"status"`
	Players    []string    `json:"players"`
	Spectators int         `json:"spectators"`
	Turn       string      `json:"turn,omitempty"`
}

// tygo:generate
type HealthResponse struct {
	Status      string            `json:"status"`
	Connections int               `json:"connections"`
	Rooms       int               `json:"rooms"`
	Store       map[string]string `json:"store"`
}
