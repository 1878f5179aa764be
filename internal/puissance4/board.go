package puissance4

import (
	"errors"
	"fmt"
)

const (
	Rows    = 6
	Cols    = 7
	Connect = 4
)

type Disc string

const (
	Empty  Disc = ""
	Red    Disc = "red"
	Yellow Disc = "yellow"
)

var (
	ErrColumnFull   = errors.New("column is full")
	ErrNoSuchColumn = errors.New("no such column")
)

// Board is the grid, row 0 at the top. Discs never move once dropped.
type Board [Rows][Cols]Disc

// Drop lets a disc fall to the lowest empty cell of col and returns its row.
func (b *Board) Drop(col int, d Disc) (int, error) {
	if col < 0 || col >= Cols {
		return 0, fmt.Errorf("%w: %d", ErrNoSuchColumn, col)
	}
	for row := Rows - 1; row >= 0; row-- {
		if b[row][col] == Empty {
			b[row][col] = d
			return row, nil
		}
	}
	return 0, ErrColumnFull
}

func (b *Board) ColumnFull(col int) bool {
	return b[0][col] != Empty
}

func (b *Board) Full() bool {
	for col := range Cols {
		if !b.ColumnFull(col) {
			return false
		}
	}
	return true
}

// axes are the four lines through a cell: horizontal, vertical and both
// diagonals. Each is walked in both directions.
var axes = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// WinsAt reports whether the disc at (row, col) completes a line of Connect.
// Only lines through the last drop can have changed, so that is all it checks.
func (b *Board) WinsAt(row, col int) bool {
	d := b[row][col]
	if d == Empty {
		return false
	}
	for _, axis := range axes {
		n := 1 + b.run(row, col, axis[0], axis[1], d) + b.run(row, col, -axis[0], -axis[1], d)
		if n >= Connect {
			return true
		}
	}
	return false
}

// run counts matching discs from (row, col) outward, not counting the cell itself.
func (b *Board) run(row, col, dr, dc int, d Disc) int {
	n := 0
	for r, c := row+dr, col+dc; r >= 0 && r < Rows && c >= 0 && c < Cols && b[r][c] == d; r, c = r+dr, c+dc {
		n++
	}
	return n
}
