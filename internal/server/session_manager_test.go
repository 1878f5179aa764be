package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_BindAndRetrieve(t *testing.T) {
	sm := NewSessionManager()

	previous := sm.Bind("Alice", "conn-1")
	assert.Empty(t, previous, "First connection replaces nothing")

	info, err := sm.GetSession("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", info.Pseudo)
	assert.Equal(t, "conn-1", info.ConnectionID)
	assert.True(t, info.Connected)
	assert.Equal(t, "conn-1", sm.ConnectionFor("Alice"))
}

func TestSessionManager_GetUnknownIdentity(t *testing.T) {
	sm := NewSessionManager()

	_, err := sm.GetSession("nobody")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
	assert.Contains(t, err.Error(), "IDENTITY_NOT_FOUND")
	assert.Empty(t, sm.ConnectionFor("nobody"))
}

// The latest connection of an identity wins; the caller closes the old one.
func TestSessionManager_LatestConnectionWins(t *testing.T) {
	sm := NewSessionManager()

	sm.Bind("Alice", "conn-1")
	previous := sm.Bind("Alice", "conn-2")

	assert.Equal(t, "conn-1", previous)
	assert.Equal(t, "conn-2", sm.ConnectionFor("Alice"))

	// Rebinding the same connection replaces nothing.
	assert.Empty(t, sm.Bind("Alice", "conn-2"))
}

func TestSessionManager_RefreshSuperseded(t *testing.T) {
	sm := NewSessionManager()

	sm.Bind("Alice", "conn-1")
	sm.Bind("Alice", "conn-2")

	assert.False(t, sm.Refresh("Alice", "conn-1"), "Superseded connection must not take the identity back")
	assert.True(t, sm.Refresh("Alice", "conn-2"))
	assert.Equal(t, "conn-2", sm.ConnectionFor("Alice"))

	// Refresh binds an identity nobody holds.
	assert.True(t, sm.Refresh("Bob", "conn-3"))
	assert.Equal(t, "conn-3", sm.ConnectionFor("Bob"))
}

func TestSessionManager_ReleaseWithoutGrace(t *testing.T) {
	sm := NewSessionManager()
	sm.Bind("Alice", "conn-1")

	expired := false
	released := sm.Release("Alice", "conn-1", 0, func() { expired = true })

	assert.True(t, released)
	assert.True(t, expired)
	_, err := sm.GetSession("Alice")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestSessionManager_ReleaseOfSupersededConnectionIsIgnored(t *testing.T) {
	sm := NewSessionManager()
	sm.Bind("Alice", "conn-1")
	sm.Bind("Alice", "conn-2")

	released := sm.Release("Alice", "conn-1", 0, func() {
		t.Error("onExpire must not run for a superseded connection")
	})

	assert.False(t, released)
	assert.Equal(t, "conn-2", sm.ConnectionFor("Alice"))
}

func TestSessionManager_GraceExpires(t *testing.T) {
	sm := NewSessionManager()
	sm.Bind("Alice", "conn-1")

	var expired atomic.Bool
	sm.Release("Alice", "conn-1", 20*time.Millisecond, func() { expired.Store(true) })

	assert.Empty(t, sm.ConnectionFor("Alice"), "Released identity has no live connection")
	assert.NotContains(t, sm.Connected(), "Alice")

	assert.Eventually(t, expired.Load, time.Second, 5*time.Millisecond)
	_, err := sm.GetSession("Alice")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestSessionManager_ReconnectWithinGrace(t *testing.T) {
	sm := NewSessionManager()
	sm.Bind("Alice", "conn-1")

	var expired atomic.Bool
	sm.Release("Alice", "conn-1", 50*time.Millisecond, func() { expired.Store(true) })

	previous := sm.Bind("Alice", "conn-2")
	assert.Empty(t, previous, "A released connection is not reported as replaced")

	// Why: waiting twice the grace period gives a timer that was not
	// cancelled every chance to fire.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, expired.Load(), "Reconnecting cancels the pending leave")
	assert.Equal(t, "conn-2", sm.ConnectionFor("Alice"))
}

func TestSessionManager_Connected(t *testing.T) {
	sm := NewSessionManager()
	sm.Bind("Alice", "conn-1")
	sm.Bind("Bob", "conn-2")
	sm.Bind("Carol", "conn-3")
	sm.Release("Carol", "conn-3", time.Minute, func() {})

	assert.ElementsMatch(t, []string{"Alice", "Bob"}, sm.Connected())

	sm.RemoveSession("Carol")
	sm.RemoveSession("Bob")
	assert.ElementsMatch(t, []string{"Alice"}, sm.Connected())
}

func TestSessionManager_ConcurrentBinds(t *testing.T) {
	sm := NewSessionManager()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pseudo := fmt.Sprintf("player-%d", i%10)
			sm.Bind(pseudo, fmt.Sprintf("conn-%d", i))
			sm.ConnectionFor(pseudo)
		}(i)
	}
	wg.Wait()

	assert.Len(t, sm.Connected(), 10)
}
