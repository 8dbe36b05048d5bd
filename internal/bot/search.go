package bot

import (
	"fmt"

	"ctchen222/Tic-Tac-Toe-Banter/internal/game"
)

// Terminal scores from the searching player's point of view. Scores are not
// weighted by depth.
const (
	scoreWin  = 1
	scoreLoss = -1
	scoreTie  = 0
)

// SearchResult is the outcome of a minimax search. Index is -1 at terminal
// positions.
type SearchResult struct {
	Index int
	Score int
	Nodes int
}

// BestMove returns the minimax-optimal cell for aiMark, who is to move.
// Among equally scored moves the lowest index wins.
//
// The board must have an empty cell and no winner; violating that, or
// passing marks that are not distinct X and O, panics.
func BestMove(board game.Board, aiMark, opponentMark game.Mark) int {
	return Search(board, aiMark, opponentMark).Index
}

// Search runs the exhaustive minimax search for aiMark and reports the chosen
// index, its score and how many positions were visited.
func Search(board game.Board, aiMark, opponentMark game.Mark) SearchResult {
	if !aiMark.Valid() || !opponentMark.Valid() || aiMark == opponentMark {
		panic(fmt.Sprintf("bot: invalid marks ai=%q opponent=%q", string(aiMark), string(opponentMark)))
	}
	if outcome := game.Evaluate(board); outcome.Over() {
		panic(fmt.Sprintf("bot: search on finished board %s", board))
	}

	s := &searcher{board: board, ai: aiMark, opponent: opponentMark}
	res := s.minimax(aiMark)
	res.Nodes = s.nodes
	return res
}

// searcher owns a scratch copy of the board. Every placement is undone before
// minimax returns.
type searcher struct {
	board    game.Board
	ai       game.Mark
	opponent game.Mark
	nodes    int
}

func (s *searcher) minimax(turn game.Mark) SearchResult {
	s.nodes++

	outcome := game.Evaluate(s.board)
	if outcome.HasWinner() {
		return SearchResult{Index: -1, Score: s.scoreOf(outcome.Winner)}
	}
	moves := game.AvailableMoves(s.board)
	if len(moves) == 0 {
		return SearchResult{Index: -1, Score: scoreTie}
	}

	maximizing := turn == s.ai
	next := s.ai
	best := SearchResult{Index: -1, Score: scoreWin + 1}
	if maximizing {
		next = s.opponent
		best.Score = scoreLoss - 1
	}

	for _, idx := range moves {
		s.board[idx] = turn
		res := s.minimax(next)
		s.board[idx] = game.None

		if (maximizing && res.Score > best.Score) || (!maximizing && res.Score < best.Score) {
			best = SearchResult{Index: idx, Score: res.Score}
		}
	}
	return best
}

func (s *searcher) scoreOf(winner game.Mark) int {
	if winner == s.ai {
		return scoreWin
	}
	return scoreLoss
}
