package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gameshub-server/internal/game"
	"gameshub-server/internal/puissance4"
	"gameshub-server/internal/uno"
)

var (
	ErrRoomNotFound = &game.ActionError{Code: "ROOM_NOT_FOUND", Message: "Room not found"}
	ErrUnknownGame  = &game.ActionError{Code: "UNKNOWN_GAME", Message: "Unknown game"}
)

type roomKey struct {
	kind game.Kind
	code string
}

// Room holds the current session of one game in one room. The session is
// swapped for a fresh lobby every time a match ends.
type Room struct {
	Kind      game.Kind
	Code      string
	Table     game.Table
	CreatedAt time.Time
	UpdatedAt time.Time
}

type GameManagerConfig struct {
	Notifier        game.Notifier
	Logger          logrus.FieldLogger
	TurnTimeouts    map[game.Kind]time.Duration
	EndDisplayDelay time.Duration

	// OnResult receives every terminal result, after the room already holds
	// its fresh lobby. It runs with the finished session locked.
	OnResult func(game.Result)
}

// GameManager is the room registry. It never calls into a session while
// holding its own lock: sessions call back into it from OnFinish with their
// lock held, so the order is always session, then manager.
type GameManager struct {
	rooms     map[roomKey]*Room
	usedCodes map[string]bool
	cfg       GameManagerConfig
	log       logrus.FieldLogger
	mu        sync.RWMutex
}

func NewGameManager(cfg GameManagerConfig) *GameManager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &GameManager{
		rooms:     make(map[roomKey]*Room),
		usedCodes: make(map[string]bool),
		cfg:       cfg,
		log:       cfg.Logger,
	}
}

func (gm *GameManager) newTable(kind game.Kind, code string) game.Table {
	opts := game.Options{
		TurnTimeout:     gm.cfg.TurnTimeouts[kind],
		EndDisplayDelay: gm.cfg.EndDisplayDelay,
		Notifier:        gm.cfg.Notifier,
		OnFinish:        gm.onFinish,
		Logger:          gm.log,
	}

	switch kind {
	case game.KindUno:
		return game.NewSession[uno.Move](kind, code, uno.NewGame(), opts)
	case game.KindPuissance4:
		var p4opts []puissance4.Option
		if opts.TurnTimeout > 0 {
			p4opts = append(p4opts, puissance4.WithTimeoutForfeit())
		}
		return game.NewSession[puissance4.Move](kind, code, puissance4.NewGame(p4opts...), opts)
	}
	panic(fmt.Sprintf("no rules for game %q", kind))
}

// GetTable returns the current session of a room. The main room of every game
// is created on first use; other rooms must have been created.
func (gm *GameManager) GetTable(kind game.Kind, code string) (game.Table, error) {
	if _, ok := game.ParseKind(string(kind)); !ok {
		return nil, ErrUnknownGame
	}
	code = NormalizeRoomCode(code)
	if err := ValidateRoomCode(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoomNotFound, err)
	}
	key := roomKey{kind, code}

	gm.mu.RLock()
	room, exists := gm.rooms[key]
	gm.mu.RUnlock()
	if exists {
		return room.Table, nil
	}
	if code != DefaultRoom {
		return nil, ErrRoomNotFound
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()
	if room, exists := gm.rooms[key]; exists {
		return room.Table, nil
	}
	room = gm.addRoomLocked(kind, code)
	return room.Table, nil
}

// CreateRoom opens a private room under a fresh four-letter code.
func (gm *GameManager) CreateRoom(kind game.Kind) (*Room, error) {
	if _, ok := game.ParseKind(string(kind)); !ok {
		return nil, ErrUnknownGame
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()

	code := GenerateRoomCode(gm.usedCodes)
	gm.usedCodes[code] = true
	room := gm.addRoomLocked(kind, code)
	gm.log.WithFields(logrus.Fields{"game": kind, "room": code}).Info("room created")
	return room, nil
}

func (gm *GameManager) addRoomLocked(kind game.Kind, code string) *Room {
	now := time.Now()
	room := &Room{
		Kind:      kind,
		Code:      code,
		Table:     gm.newTable(kind, code),
		CreatedAt: now,
		UpdatedAt: now,
	}
	gm.rooms[roomKey{kind, code}] = room
	return room
}

// onFinish replaces a finished session with a fresh lobby, announces it and
// hands the result on.
func (gm *GameManager) onFinish(t game.Table, res game.Result) {
	fresh := gm.newTable(t.Kind(), t.Room())
	key := roomKey{t.Kind(), t.Room()}

	gm.mu.Lock()
	room, exists := gm.rooms[key]
	replaced := exists && room.Table == t
	if replaced {
		room.Table = fresh
		room.UpdatedAt = time.Now()
	}
	gm.mu.Unlock()

	if replaced {
		fresh.BroadcastLobby()
	}
	if gm.cfg.OnResult != nil {
		gm.cfg.OnResult(res)
	}
}

// Tables returns every current session, optionally only those of one game.
func (gm *GameManager) Tables(kind game.Kind) []game.Table {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	tables := make([]game.Table, 0, len(gm.rooms))
	for key, room := range gm.rooms {
		if kind == "" || key.kind == kind {
			tables = append(tables, room.Table)
		}
	}
	return tables
}

// LeaveAll removes pseudo from every room they are in and returns how many
// that was. Used when an identity's connection is gone for good.
func (gm *GameManager) LeaveAll(pseudo string) int {
	left := 0
	for _, t := range gm.Tables("") {
		if !t.Has(pseudo) {
			continue
		}
		if err := t.Leave(pseudo); err != nil {
			gm.log.WithError(err).WithField("pseudo", pseudo).Debug("leave on disconnect failed")
			continue
		}
		left++
	}
	return left
}

// AbortAll ends every game in progress. Used on shutdown.
func (gm *GameManager) AbortAll(reason string) int {
	aborted := 0
	for _, t := range gm.Tables("") {
		if t.Abort(reason) {
			aborted++
		}
	}
	return aborted
}

// CleanupIdleRooms closes created rooms that have been empty for longer than
// idle and frees their codes. Main rooms are never closed.
func (gm *GameManager) CleanupIdleRooms(idle time.Duration) []string {
	type candidate struct {
		key   roomKey
		table game.Table
	}

	gm.mu.RLock()
	var candidates []candidate
	for key, room := range gm.rooms {
		if key.code != DefaultRoom {
			candidates = append(candidates, candidate{key, room.Table})
		}
	}
	gm.mu.RUnlock()

	// Sessions lock before the registry, so emptiness is settled by the
	// session itself. A join racing the sweep either lands first and keeps
	// the room or finds it closed.
	var idleRooms []candidate
	for _, c := range candidates {
		if c.table.CloseIfIdle(idle) {
			idleRooms = append(idleRooms, c)
		}
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()

	var closed []string
	for _, c := range idleRooms {
		room, exists := gm.rooms[c.key]
		if !exists || room.Table != c.table {
			continue
		}
		delete(gm.rooms, c.key)
		delete(gm.usedCodes, c.key.code)
		closed = append(closed, c.key.code)
	}
	return closed
}

func (gm *GameManager) RoomCount() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.rooms)
}
