package server

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"gameshub-server/internal/game"
)

var (
	ErrServerShutdown = &game.ActionError{Code: "SERVER_SHUTDOWN", Message: "Server is shutting down"}
	ErrRateLimited    = &game.ActionError{Code: "RATE_LIMITED", Message: "Too many messages, slow down"}
	ErrInvalidMessage = &game.ActionError{Code: "INVALID_MESSAGE", Message: "Invalid message"}
	ErrInvalidPseudo  = &game.ActionError{Code: "PSEUDO_INVALID", Message: "Invalid pseudo"}
)

const maxPseudoLength = 20

// RateLimiter allows each connection at most maxRequests messages in any
// sliding window.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID → recent message times
	now         func() time.Time
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Allow records a message from connectionID and reports whether it is within
// the limit. Rejected messages are not recorded.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := r.prune(r.requests[connectionID], now.Add(-r.window))
	if len(recent) >= r.maxRequests {
		r.requests[connectionID] = recent
		return false
	}
	r.requests[connectionID] = append(recent, now)
	return true
}

func (r *RateLimiter) prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	return timestamps[i:]
}

// Cleanup drops connections with no message inside the window.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	for connID, timestamps := range r.requests {
		if len(r.prune(timestamps, cutoff)) == 0 {
			delete(r.requests, connID)
		}
	}
}

func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ConnectionHealth tracks the last sign of life from each connection, either
// a message or an answered ping.
type ConnectionHealth struct {
	lastActivity map[string]time.Time // connectionID → last activity
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = time.Now()
}

// IsInactive reports whether connectionID has been silent for longer than
// timeout. Unknown connections are not inactive.
func (h *ConnectionHealth) IsInactive(connectionID string, timeout time.Duration) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lastActivity, exists := h.lastActivity[connectionID]
	return exists && time.Since(lastActivity) > timeout
}

func (h *ConnectionHealth) GetInactiveConnections(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inactive := make([]string, 0)
	now := time.Now()
	for connID, lastActivity := range h.lastActivity {
		if now.Sub(lastActivity) > timeout {
			inactive = append(inactive, connID)
		}
	}
	return inactive
}

func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}

var hubMessageTypes = map[string]bool{
	"ping":        true,
	"room:create": true,
	"leaderboard": true,
}

var gameActions = map[string]bool{
	"getState": true,
	"join":     true,
	"leave":    true,
	"start":    true,
	"play":     true,
	"draw":     true,
}

// ParseMessageType splits "<game>:<action>". Hub messages come back with an
// empty kind.
func ParseMessageType(msgType string) (game.Kind, string, error) {
	if hubMessageTypes[msgType] {
		return "", msgType, nil
	}

	prefix, action, ok := strings.Cut(msgType, ":")
	if !ok {
		return "", "", fmt.Errorf("%w: unknown message type '%s'", ErrInvalidMessage, msgType)
	}
	kind, ok := game.ParseKind(prefix)
	if !ok {
		return "", "", fmt.Errorf("%w: '%s'", ErrUnknownGame, prefix)
	}
	if !gameActions[action] {
		return "", "", fmt.Errorf("%w: '%s'", game.ErrUnknownAction, action)
	}
	return kind, action, nil
}

// ValidatePseudo checks the identity handed over by the auth layer.
func ValidatePseudo(pseudo string) error {
	if len(pseudo) == 0 {
		return fmt.Errorf("%w: pseudo cannot be empty", ErrInvalidPseudo)
	}
	if len([]rune(pseudo)) > maxPseudoLength {
		return fmt.Errorf("%w: pseudo too long (max %d characters)", ErrInvalidPseudo, maxPseudoLength)
	}
	for _, r := range pseudo {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: pseudo contains control characters", ErrInvalidPseudo)
		}
	}
	return nil
}
