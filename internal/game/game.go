package game

import (
	"errors"
	"math/rand/v2"
)

// FirstPlayer selects who opens a game.
type FirstPlayer string

const (
	FirstHuman    FirstPlayer = "human"
	FirstComputer FirstPlayer = "computer"
	FirstRandom   FirstPlayer = "random"
)

var (
	ErrGameOver    = errors.New("game already finished")
	ErrNotYourTurn = errors.New("not player's turn")
	ErrOutOfBounds = errors.New("invalid move")
	ErrOccupied    = errors.New("cell already occupied")
	ErrUnknownMark = errors.New("mark is not part of this game")
)

// Game is the authoritative state of one human-versus-computer match.
type Game struct {
	Board    Board       `json:"board"`
	Turn     Mark        `json:"turn"`
	Human    Mark        `json:"human"`
	Computer Mark        `json:"computer"`
	Outcome  Outcome     `json:"outcome"`
	Moves    int         `json:"moves"`
	First    FirstPlayer `json:"first"`
}

// New creates an empty game. The human plays human; the computer takes the
// other mark.
func New(human Mark, first FirstPlayer) *Game {
	g := &Game{
		Human:    human,
		Computer: human.Opponent(),
		First:    first,
	}
	g.Turn = g.openingMark()
	return g
}

// Play writes mark at index and re-evaluates the board. The turn passes to
// the other player only while the game continues.
func (g *Game) Play(mark Mark, index int) error {
	if g.Outcome.Over() {
		return ErrGameOver
	}
	if mark != g.Human && mark != g.Computer {
		return ErrUnknownMark
	}
	if mark != g.Turn {
		return ErrNotYourTurn
	}
	if !InBounds(index) {
		return ErrOutOfBounds
	}
	if g.Board[index] != None {
		return ErrOccupied
	}

	g.Board[index] = mark
	g.Moves++
	g.Outcome = Evaluate(g.Board)
	if !g.Outcome.Over() {
		g.Turn = mark.Opponent()
	}
	return nil
}

// Over reports whether the game has a winner or is tied.
func (g *Game) Over() bool {
	return g.Outcome.Over()
}

// ComputerToMove reports whether the computer should move next.
func (g *Game) ComputerToMove() bool {
	return !g.Over() && g.Turn == g.Computer
}

// Restart clears the board and hands the opening move out again.
func (g *Game) Restart() {
	g.Board = Board{}
	g.Outcome = Outcome{}
	g.Moves = 0
	g.Turn = g.openingMark()
}

// Clone returns an independent copy.
func (g *Game) Clone() *Game {
	cp := *g
	return &cp
}

func (g *Game) openingMark() Mark {
	switch g.First {
	case FirstComputer:
		return g.Computer
	case FirstRandom:
		return randomlyChooseFirstPlayer(g.Human, g.Computer)
	default:
		return g.Human
	}
}

func randomlyChooseFirstPlayer(a, b Mark) Mark {
	if rand.IntN(2) == 0 {
		return a
	}
	return b
}
