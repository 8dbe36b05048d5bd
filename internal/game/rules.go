package game

// Outcome is the result of evaluating a board. Winner is None unless a line
// is complete; Tied is true only when there is no winner and the board is full.
type Outcome struct {
	Winner Mark    `json:"winner,omitempty"`
	Line   WinLine `json:"line"`
	Tied   bool    `json:"tied"`
}

// HasWinner reports whether a player completed a line.
func (o Outcome) HasWinner() bool {
	return o.Winner != None
}

// Over reports whether the game has ended in a win or a tie.
func (o Outcome) Over() bool {
	return o.HasWinner() || o.Tied
}

// Evaluate checks the win lines in order and returns the first complete one.
// Without a winner the board is a tie iff every cell is occupied.
func Evaluate(b Board) Outcome {
	for _, line := range WinLines {
		a := b[line[0]]
		if a != None && a == b[line[1]] && a == b[line[2]] {
			return Outcome{Winner: a, Line: line}
		}
	}
	return Outcome{Tied: b.Full()}
}

// AvailableMoves returns the indices of empty cells in ascending order.
func AvailableMoves(b Board) []int {
	moves := make([]int, 0, BoardSize)
	for i, c := range b {
		if c == None {
			moves = append(moves, i)
		}
	}
	return moves
}
