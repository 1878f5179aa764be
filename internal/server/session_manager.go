package server

import (
	"sync"
	"time"

	"gameshub-server/internal/game"
)

var ErrUnknownIdentity = &game.ActionError{Code: "IDENTITY_NOT_FOUND", Message: "No connection for this identity"}

// SessionInfo binds a player identity to its current connection.
type SessionInfo struct {
	Pseudo       string
	ConnectionID string
	Connected    bool
	ConnectedAt  time.Time

	grace *time.Timer
}

// SessionManager is the identity registry: each pseudo maps to at most one
// live connection and the latest connection wins. Broadcasts look identities
// up here instead of scanning connections.
type SessionManager struct {
	sessions map[string]*SessionInfo // pseudo → session
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*SessionInfo),
	}
}

// Bind points pseudo at connectionID and returns the connection it replaced,
// if any. A pending disconnect for pseudo is cancelled.
func (sm *SessionManager) Bind(pseudo, connectionID string) (previous string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	info, exists := sm.sessions[pseudo]
	if !exists {
		sm.sessions[pseudo] = &SessionInfo{
			Pseudo:       pseudo,
			ConnectionID: connectionID,
			Connected:    true,
			ConnectedAt:  time.Now(),
		}
		return ""
	}

	if info.grace != nil {
		info.grace.Stop()
		info.grace = nil
	}
	if info.Connected && info.ConnectionID != connectionID {
		previous = info.ConnectionID
	}
	info.ConnectionID = connectionID
	info.Connected = true
	info.ConnectedAt = time.Now()
	return previous
}

// Refresh re-binds pseudo to connectionID unless a different live connection
// already owns it. It reports whether connectionID is the current binding.
func (sm *SessionManager) Refresh(pseudo, connectionID string) bool {
	sm.mu.RLock()
	info, exists := sm.sessions[pseudo]
	current := exists && info.Connected && info.ConnectionID == connectionID
	superseded := exists && info.Connected && info.ConnectionID != connectionID
	sm.mu.RUnlock()

	if current {
		return true
	}
	if superseded {
		return false
	}
	sm.Bind(pseudo, connectionID)
	return true
}

// Release marks connectionID as gone. If it was still the identity's current
// connection and nothing reconnects within grace, pseudo is forgotten and
// onExpire runs. It reports whether connectionID was the current binding.
func (sm *SessionManager) Release(pseudo, connectionID string, grace time.Duration, onExpire func()) bool {
	sm.mu.Lock()
	info, exists := sm.sessions[pseudo]
	if !exists || info.ConnectionID != connectionID || !info.Connected {
		sm.mu.Unlock()
		return false
	}
	info.Connected = false

	if grace <= 0 {
		delete(sm.sessions, pseudo)
		sm.mu.Unlock()
		onExpire()
		return true
	}

	info.grace = time.AfterFunc(grace, func() {
		sm.mu.Lock()
		cur, ok := sm.sessions[pseudo]
		if !ok || cur != info || cur.Connected {
			sm.mu.Unlock()
			return
		}
		delete(sm.sessions, pseudo)
		sm.mu.Unlock()
		onExpire()
	})
	sm.mu.Unlock()
	return true
}

func (sm *SessionManager) GetSession(pseudo string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	info, exists := sm.sessions[pseudo]
	if !exists {
		return SessionInfo{}, ErrUnknownIdentity
	}
	return *info, nil
}

// ConnectionFor returns the live connection of pseudo, or "".
func (sm *SessionManager) ConnectionFor(pseudo string) string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if info, exists := sm.sessions[pseudo]; exists && info.Connected {
		return info.ConnectionID
	}
	return ""
}

// Connected lists every identity with a live connection.
func (sm *SessionManager) Connected() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	pseudos := make([]string, 0, len(sm.sessions))
	for pseudo, info := range sm.sessions {
		if info.Connected {
			pseudos = append(pseudos, pseudo)
		}
	}
	return pseudos
}

// RemoveSession forgets pseudo immediately, cancelling any grace period.
func (sm *SessionManager) RemoveSession(pseudo string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if info, exists := sm.sessions[pseudo]; exists && info.grace != nil {
		info.grace.Stop()
	}
	delete(sm.sessions, pseudo)
}
