package puissance4_test

import (
	"encoding/json"
	"testing"

	"gameshub-server/internal/game"
	"gameshub-server/internal/puissance4"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func started(t *testing.T, opts ...puissance4.Option) *puissance4.Game {
	t.Helper()
	g := puissance4.NewGame(opts...)
	require.NoError(t, g.Start([]string{"P1", "P2"}))
	return g
}

// playAll drops discs column by column, alternating players, and returns the
// outcome of the last drop.
func playAll(t *testing.T, g *puissance4.Game, cols ...int) game.Outcome {
	t.Helper()
	var out game.Outcome
	for i, col := range cols {
		var err error
		out, err = g.Play(g.Current(), col)
		require.NoError(t, err, "drop %d in column %d", i, col)
		if out.Finished {
			require.Equal(t, len(cols)-1, i, "game ended early at drop %d", i)
		}
	}
	return out
}

func TestStart(t *testing.T) {
	assert := assert.New(t)

	g := started(t)
	assert.Equal(puissance4.Board{}, g.Board)
	assert.Equal(0, g.Current())
	assert.Error(puissance4.NewGame().Start([]string{"P1"}))
	assert.Error(puissance4.NewGame().Start([]string{"P1", "P2", "P3"}))
}

func TestVerticalWin(t *testing.T) {
	assert := assert.New(t)

	g := started(t)
	out := playAll(t, g, 0, 1, 0, 1, 0, 1, 0)
	assert.True(out.Finished)
	assert.False(out.Draw)
	assert.Equal(0, out.Winner)
}

func TestGravity(t *testing.T) {
	assert := assert.New(t)

	g := started(t)
	playAll(t, g, 3, 3, 3, 4)

	assert.Equal(puissance4.Red, g.Board[5][3])
	assert.Equal(puissance4.Yellow, g.Board[4][3])
	assert.Equal(puissance4.Red, g.Board[3][3])
	assert.Equal(puissance4.Yellow, g.Board[5][4])
	assert.Equal(&puissance4.Position{Row: 5, Col: 4}, g.LastMove)

	for col := range puissance4.Cols {
		seenDisc := false
		for row := range puissance4.Rows {
			if g.Board[row][col] != puissance4.Empty {
				seenDisc = true
			} else {
				assert.False(seenDisc, "floating disc in column %d", col)
			}
		}
	}
}

func TestColumnFull(t *testing.T) {
	assert := assert.New(t)

	g := started(t)
	playAll(t, g, 2, 2, 2, 2, 2, 2)

	before := g.Board
	_, err := g.Play(0, 2)
	assert.ErrorIs(err, game.ErrColumnFull)
	assert.Equal(before, g.Board)
	assert.Equal(0, g.Current())

	_, err = g.Play(0, 7)
	assert.ErrorIs(err, game.ErrInvalidMove)
	_, err = g.Play(0, -1)
	assert.ErrorIs(err, game.ErrInvalidMove)
}

// TestWinSymmetry places a line of four on every axis and in every position
// along it, completing it from each of the four cells in turn.
func TestWinSymmetry(t *testing.T) {
	lines := map[string][2]int{
		"horizontal":    {0, 1},
		"vertical":      {1, 0},
		"diagonal down": {1, 1},
		"diagonal up":   {1, -1},
	}

	for name, dir := range lines {
		for row := range puissance4.Rows {
			for col := range puissance4.Cols {
				endRow := row + dir[0]*(puissance4.Connect-1)
				endCol := col + dir[1]*(puissance4.Connect-1)
				if endRow < 0 || endRow >= puissance4.Rows || endCol < 0 || endCol >= puissance4.Cols {
					continue
				}
				for last := range puissance4.Connect {
					var b puissance4.Board
					for i := range puissance4.Connect {
						b[row+dir[0]*i][col+dir[1]*i] = puissance4.Yellow
					}
					r, c := row+dir[0]*last, col+dir[1]*last
					assert.True(t, b.WinsAt(r, c), "%s from (%d,%d) completed at (%d,%d)", name, row, col, r, c)

					// Breaking the line anywhere leaves three, which never wins.
					for gap := range puissance4.Connect {
						if gap == last {
							continue
						}
						broken := b
						broken[row+dir[0]*gap][col+dir[1]*gap] = puissance4.Red
						assert.False(t, broken.WinsAt(r, c), "%s broken at %d", name, gap)
					}
				}
			}
		}
	}
}

func TestThreeInARowDoesNotWin(t *testing.T) {
	var b puissance4.Board
	for col := range 3 {
		b[5][col] = puissance4.Red
	}
	for col := range 3 {
		assert.False(t, b.WinsAt(5, col))
	}
	assert.False(t, b.WinsAt(0, 0), "empty cell")
}

func TestDrawOnFullBoard(t *testing.T) {
	assert := assert.New(t)

	g := started(t)
	// Columns filled in pairs, the second pass starting with the other color.
	moves := []int{
		0, 1, 0, 1, 0, 1,
		2, 3, 2, 3, 2, 3,
		4, 5, 4, 5, 4, 5,
		1, 0, 1, 0, 1, 0,
		3, 2, 3, 2, 3, 2,
		5, 4, 5, 4, 5, 4,
		6, 6, 6, 6, 6, 6,
	}
	var out game.Outcome
	for i, col := range moves {
		var err error
		out, err = g.Play(g.Current(), col)
		require.NoError(t, err, "move %d", i)
		require.False(t, out.Finished && !out.Draw, "unexpected win at move %d:\n%s", i, render(g.Board))
	}
	assert.True(out.Finished)
	assert.True(out.Draw)
	assert.True(g.Board.Full())
}

func TestTimeout(t *testing.T) {
	assert := assert.New(t)

	_, ok := started(t).Timeout(0)
	assert.False(ok, "no default action unless forfeits are on")

	g := started(t, puissance4.WithTimeoutForfeit())
	out, ok := g.Timeout(0)
	assert.True(ok)
	assert.True(out.Finished)
	assert.Equal(1, out.Winner)
}

func TestRemoveAlwaysFails(t *testing.T) {
	assert.Error(t, started(t).Remove(0))
}

func TestDecodeMove(t *testing.T) {
	assert := assert.New(t)
	g := started(t)

	m, err := g.DecodeMove("play", json.RawMessage(`{"column":4}`))
	require.NoError(t, err)
	assert.Equal(4, *m.Column)

	_, err = g.DecodeMove("play", json.RawMessage(`{}`))
	assert.ErrorIs(err, game.ErrInvalidMove)
	_, err = g.DecodeMove("draw", nil)
	assert.ErrorIs(err, game.ErrUnknownAction)
}

func TestViewIsPublic(t *testing.T) {
	assert := assert.New(t)

	g := started(t)
	playAll(t, g, 3)

	p1 := g.View(0).(*puissance4.ClientState)
	p2 := g.View(1).(*puissance4.ClientState)
	watcher := g.View(game.Spectator).(*puissance4.ClientState)

	assert.Equal(p1.Board, watcher.Board)
	assert.Equal(p2.Board, watcher.Board)
	assert.Equal(puissance4.Red, p1.MyDisc)
	assert.Equal(puissance4.Yellow, p2.MyDisc)
	assert.Equal(puissance4.Empty, watcher.MyDisc)
	assert.Equal(map[string]puissance4.Disc{"P1": puissance4.Red, "P2": puissance4.Yellow}, watcher.Discs)
}

func render(b puissance4.Board) string {
	s := ""
	for _, row := range b {
		for _, d := range row {
			switch d {
			case puissance4.Red:
				s += "R"
			case puissance4.Yellow:
				s += "Y"
			default:
				s += "."
			}
		}
		s += "\n"
	}
	return s
}
