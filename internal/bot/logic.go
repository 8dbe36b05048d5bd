package bot

import (
	"math/rand/v2"

	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
)

// Difficulty selects how the computer picks its move.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps unknown values to Hard.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case Easy, Medium, Hard:
		return Difficulty(s)
	}
	return Hard
}

// MoveCalculator picks the computer's move. Only hard moves are searched, so
// Nodes is zero for easy and medium.
type MoveCalculator interface {
	CalculateNextMove(board game.Board, mark game.Mark, difficulty Difficulty) SearchResult
}

// BotMoveCalculator implements MoveCalculator with the package functions.
type BotMoveCalculator struct{}

// CalculateNextMove calls the package-level function to satisfy the interface.
func (c *BotMoveCalculator) CalculateNextMove(board game.Board, mark game.Mark, difficulty Difficulty) SearchResult {
	return CalculateNextMove(board, mark, difficulty)
}

// CalculateNextMove determines the bot's next move for the difficulty. The
// index is -1 when the game is already over.
func CalculateNextMove(board game.Board, botMark game.Mark, difficulty Difficulty) SearchResult {
	if game.Evaluate(board).Over() {
		return SearchResult{Index: -1}
	}
	switch difficulty {
	case Easy:
		return SearchResult{Index: easyMove(board)}
	case Medium:
		return SearchResult{Index: mediumMove(board, botMark)}
	default:
		return Search(board, botMark, botMark.Opponent())
	}
}

// easyMove makes a completely random move.
func easyMove(board game.Board) int {
	moves := game.AvailableMoves(board)
	if len(moves) == 0 {
		return -1
	}
	return moves[rand.IntN(len(moves))]
}

// mediumMove will win if it can, block if it must, otherwise move randomly.
func mediumMove(board game.Board, botMark game.Mark) int {
	if idx, ok := findWinningMove(board, botMark); ok {
		return idx
	}
	if idx, ok := findWinningMove(board, botMark.Opponent()); ok {
		return idx
	}
	return easyMove(board)
}

// findWinningMove finds a line holding two of mark and one empty cell.
func findWinningMove(board game.Board, mark game.Mark) (int, bool) {
	for _, line := range game.WinLines {
		count, empty := 0, -1
		for _, i := range line {
			switch board[i] {
			case mark:
				count++
			case game.None:
				empty = i
			}
		}
		if count == 2 && empty != -1 {
			return empty, true
		}
	}
	return -1, false
}
