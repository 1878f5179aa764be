package puissance4

import (
	"encoding/json"
	"errors"
	"fmt"

	"gameshub-server/internal/game"
)

const Players = 2

// Discs are handed out by seat: the first to join plays red and goes first.
var Discs = [Players]Disc{Red, Yellow}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Game struct {
	Players  []string
	Board    Board
	Turn     int
	Moves    int
	LastMove *Position

	forfeitOnTimeout bool
}

type Option func(*Game)

// WithTimeoutForfeit makes a player who lets the turn clock run out lose the
// game. Without it a timeout does nothing.
func WithTimeoutForfeit() Option {
	return func(g *Game) {
		g.forfeitOnTimeout = true
	}
}

func NewGame(opts ...Option) *Game {
	g := &Game{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) MinPlayers() int { return Players }
func (g *Game) MaxPlayers() int { return Players }

func (g *Game) Start(players []string) error {
	if len(players) != Players {
		return fmt.Errorf("puissance4 needs exactly %d players, got %d", Players, len(players))
	}
	g.Players = players
	g.Board = Board{}
	g.Turn = 0
	g.Moves = 0
	g.LastMove = nil
	return nil
}

func (g *Game) Current() int { return g.Turn }

type Move struct {
	Column *int `json:"column"`
}

func (g *Game) DecodeMove(action string, payload json.RawMessage) (Move, error) {
	if action != "play" {
		return Move{}, game.ErrUnknownAction
	}
	var m Move
	if err := json.Unmarshal(payload, &m); err != nil {
		return Move{}, fmt.Errorf("%w: %v", game.ErrInvalidMove, err)
	}
	if m.Column == nil {
		return Move{}, fmt.Errorf("%w: column is required", game.ErrInvalidMove)
	}
	return m, nil
}

func (g *Game) Apply(player int, m Move) (game.Outcome, error) {
	return g.Play(player, *m.Column)
}

// Play drops the player's disc in col. A line of four wins, a full board
// with no line is a draw, anything else passes the turn.
func (g *Game) Play(player, col int) (game.Outcome, error) {
	row, err := g.Board.Drop(col, Discs[player])
	switch {
	case errors.Is(err, ErrColumnFull):
		return game.Outcome{}, fmt.Errorf("%w: column %d", game.ErrColumnFull, col)
	case err != nil:
		return game.Outcome{}, fmt.Errorf("%w: %v", game.ErrInvalidMove, err)
	}

	g.Moves++
	g.LastMove = &Position{Row: row, Col: col}
	name := g.Players[player]

	if g.Board.WinsAt(row, col) {
		return game.Win(player, fmt.Sprintf("%s connects four!", name)), nil
	}
	if g.Board.Full() {
		return game.Draw("The board is full, it's a draw"), nil
	}

	g.Turn = 1 - player
	return game.Continue(fmt.Sprintf("%s played column %d", name, col+1)), nil
}

func (g *Game) Timeout(player int) (game.Outcome, bool) {
	if !g.forfeitOnTimeout {
		return game.Outcome{}, false
	}
	other := 1 - player
	return game.Win(other, fmt.Sprintf("%s ran out of time, %s wins", g.Players[player], g.Players[other])), true
}

// Remove always fails: with two seats any departure leaves too few players.
func (g *Game) Remove(player int) error {
	return errors.New("puissance4 cannot continue without both players")
}

type ClientState struct {
	Board    Board           `json:"board"`
	Discs    map[string]Disc `json:"discs"`
	LastMove *Position       `json:"lastMove,omitempty"`
	Moves    int             `json:"moves"`
	MyDisc   Disc            `json:"myDisc,omitempty"`
}

// View is the same for everyone apart from MyDisc; nothing is hidden.
func (g *Game) View(viewer int) any {
	discs := make(map[string]Disc, len(g.Players))
	for i, p := range g.Players {
		discs[p] = Discs[i]
	}
	state := &ClientState{
		Board:    g.Board,
		Discs:    discs,
		LastMove: g.LastMove,
		Moves:    g.Moves,
	}
	if viewer >= 0 && viewer < len(g.Players) {
		state.MyDisc = Discs[viewer]
	}
	return state
}
