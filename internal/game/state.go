package game

import "time"

// PlayerInfo is the public view of one seat at the table.
type PlayerInfo struct {
	Pseudo       string `json:"pseudo"`
	IsActiveTurn bool   `json:"isActiveTurn"`
}

// LobbyState is the membership snapshot broadcast to every connected identity.
type LobbyState struct {
	Game       Kind     `json:"game"`
	Room       string   `json:"room"`
	Players    []string `json:"players"`
	Spectators []string `json:"spectators"`
	GameState  Status   `json:"gameState"`
	MyIdentity string   `json:"myIdentity"`
	AmIInLobby bool     `json:"amIInLobby"`
	CanStart   bool     `json:"canStart"`
	MinPlayers int      `json:"minPlayers"`
	MaxPlayers int      `json:"maxPlayers"`
}

// GameState is the per-viewer projection sent on gameStart and update.
// State carries the game-specific part produced by Rules.View.
type GameState struct {
	Game           Kind         `json:"game"`
	Room           string       `json:"room"`
	GameState      Status       `json:"gameState"`
	MyIdentity     string       `json:"myIdentity"`
	Players        []PlayerInfo `json:"players"`
	Spectators     []string     `json:"spectators"`
	Turn           string       `json:"turn"`
	IsYourTurn     bool         `json:"isYourTurn"`
	IsSpectator    bool         `json:"isSpectator"`
	TurnDeadlineAt *time.Time   `json:"turnDeadlineAt"`
	Message        string       `json:"message"`
	State          any          `json:"state"`
}

// GameEnd is the terminal notice. Aborted games carry Winner "aborted" and the
// reason naming who left.
type GameEnd struct {
	Game            Kind   `json:"game"`
	Room            string `json:"room"`
	Winner          string `json:"winner,omitempty"`
	Draw            bool   `json:"draw,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ReturnToLobbyMs int64  `json:"returnToLobbyMs"`
}

const AbortedWinner = "aborted"

// Snapshot is a read-only copy of session bookkeeping.
type Snapshot struct {
	Kind         Kind
	Room         string
	Status       Status
	Players      []string
	Spectators   []string
	Turn         string
	DeadlineAt   time.Time
	LastActivity time.Time
}

// Empty reports whether nobody is seated or watching.
func (s Snapshot) Empty() bool {
	return len(s.Players) == 0 && len(s.Spectators) == 0
}
