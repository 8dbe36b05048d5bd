package game

import (
	"errors"
	"fmt"
	"strings"
)

// Mark is the symbol occupying a cell: X, O, or None for an empty cell.
type Mark string

const (
	None Mark = ""
	X    Mark = "X"
	O    Mark = "O"
)

// BoardSize is the number of cells on the board.
const BoardSize = 9

var ErrInvalidBoard = errors.New("invalid board")

// Opponent returns the other player's mark.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	}
	panic(fmt.Sprintf("game: no opponent for mark %q", string(m)))
}

// Valid reports whether m is X or O.
func (m Mark) Valid() bool {
	return m == X || m == O
}

// ParseMark parses "X" or "O" (case-insensitive).
func ParseMark(s string) (Mark, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return X, nil
	case "O":
		return O, nil
	}
	return None, fmt.Errorf("invalid mark %q", s)
}

// Board is the 3x3 playing surface stored row-major: index = row*3 + col.
type Board [BoardSize]Mark

// WinLine is a triple of board indices forming a row, column or diagonal.
type WinLine [3]int

// WinLines is checked in this order: rows top to bottom, columns left to
// right, then the two diagonals.
var WinLines = [8]WinLine{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// RowCol maps a cell index to its 0-based row and column.
func RowCol(index int) (row, col int) {
	return index / 3, index % 3
}

// Index maps a 0-based row and column to a cell index.
func Index(row, col int) int {
	return row*3 + col
}

// InBounds reports whether index addresses a cell.
func InBounds(index int) bool {
	return index >= 0 && index < BoardSize
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	for _, c := range b {
		if c == None {
			return false
		}
	}
	return true
}

// Count returns how many cells hold mark m.
func (b Board) Count(m Mark) int {
	n := 0
	for _, c := range b {
		if c == m {
			n++
		}
	}
	return n
}

// String renders the board as nine characters, '.' for empty cells.
func (b Board) String() string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteString(cellString(c))
	}
	return sb.String()
}

// Format renders the board in three labelled rows:
//
//	R1: X|O|.
//	R2: .|X|.
//	R3: O|.|.
func (b Board) Format() string {
	rows := make([]string, 3)
	for r := range 3 {
		rows[r] = fmt.Sprintf("R%d: %s|%s|%s", r+1,
			cellString(b[Index(r, 0)]), cellString(b[Index(r, 1)]), cellString(b[Index(r, 2)]))
	}
	return strings.Join(rows, "\n")
}

// Cells converts the board to a slice of strings for the wire.
func (b Board) Cells() []string {
	cells := make([]string, BoardSize)
	for i, c := range b {
		cells[i] = string(c)
	}
	return cells
}

func cellString(m Mark) string {
	if m == None {
		return "."
	}
	return string(m)
}

// ParseBoard reads a nine character board. X and O (either case) are marks;
// '.', '-', '_' and ' ' are empty cells.
func ParseBoard(s string) (Board, error) {
	var b Board
	runes := []rune(s)
	if len(runes) != BoardSize {
		return b, fmt.Errorf("%w: want %d cells, got %d", ErrInvalidBoard, BoardSize, len(runes))
	}
	for i, r := range runes {
		switch r {
		case 'X', 'x':
			b[i] = X
		case 'O', 'o':
			b[i] = O
		case '.', '-', '_', ' ':
			b[i] = None
		default:
			return b, fmt.Errorf("%w: unexpected %q at index %d", ErrInvalidBoard, r, i)
		}
	}
	return b, nil
}

// BoardFromCells builds a board from wire cells where "" (or null) is empty.
func BoardFromCells(cells []string) (Board, error) {
	var b Board
	if len(cells) != BoardSize {
		return b, fmt.Errorf("%w: want %d cells, got %d", ErrInvalidBoard, BoardSize, len(cells))
	}
	for i, c := range cells {
		if c == "" {
			continue
		}
		m, err := ParseMark(c)
		if err != nil {
			return b, fmt.Errorf("%w: index %d: %v", ErrInvalidBoard, i, err)
		}
		b[i] = m
	}
	return b, nil
}
