package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ctchen222/Tic-Tac-Toe-Banter/internal/bot"
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tictactoe",
		Short:         "Evaluate, solve and play tic tac toe boards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEvaluateCmd(), newSolveCmd(), newPlayCmd())
	return root
}

func newEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate BOARD",
		Short: "Report the winner, winning line and free cells of a board",
		Long:  "BOARD is nine characters in row order: X, O, and '.' for an empty cell.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := game.ParseBoard(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, b.Format())
			fmt.Fprintln(out, describe(game.Evaluate(b)))
			fmt.Fprintf(out, "available: %v\n", game.AvailableMoves(b))
			return nil
		},
	}
}

func newSolveCmd() *cobra.Command {
	var mark string
	cmd := &cobra.Command{
		Use:   "solve BOARD",
		Short: "Print the minimax move for the player to move",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := game.ParseBoard(args[0])
			if err != nil {
				return err
			}
			if game.Evaluate(b).Over() {
				return errors.New("board is already finished")
			}
			ai := toMove(b)
			if mark != "" {
				if ai, err = game.ParseMark(mark); err != nil {
					return err
				}
			}

			res := bot.Search(b, ai, ai.Opponent())
			row, col := game.RowCol(res.Index)
			fmt.Fprintf(cmd.OutOrStdout(), "%s plays index %d (row %d, col %d), score %+d, %d positions searched\n",
				ai, res.Index, row+1, col+1, res.Score, res.Nodes)
			return nil
		},
	}
	cmd.Flags().StringVar(&mark, "mark", "", "mark to solve for (default: whoever is to move)")
	return cmd
}

func newPlayCmd() *cobra.Command {
	var (
		mark       string
		first      string
		difficulty string
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play against the computer in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			human, err := game.ParseMark(mark)
			if err != nil {
				return err
			}
			switch game.FirstPlayer(first) {
			case game.FirstHuman, game.FirstComputer, game.FirstRandom:
			default:
				return fmt.Errorf("--first must be human, computer or random, got %q", first)
			}
			g := game.New(human, game.FirstPlayer(first))
			return play(cmd.InOrStdin(), cmd.OutOrStdout(), g, &bot.BotMoveCalculator{}, bot.ParseDifficulty(difficulty))
		},
	}
	cmd.Flags().StringVar(&mark, "mark", "X", "your mark")
	cmd.Flags().StringVar(&first, "first", string(game.FirstHuman), "who opens: human, computer or random")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(bot.Hard), "easy, medium or hard")
	return cmd
}

// play runs one game, reading "row col" (1-based) or a cell index (0-8) per move.
func play(in io.Reader, out io.Writer, g *game.Game, calc bot.MoveCalculator, difficulty bot.Difficulty) error {
	scanner := bufio.NewScanner(in)
	for !g.Over() {
		if g.ComputerToMove() {
			idx := calc.CalculateNextMove(g.Board, g.Computer, difficulty).Index
			if err := g.Play(g.Computer, idx); err != nil {
				return fmt.Errorf("computer move %d: %w", idx, err)
			}
			row, col := game.RowCol(idx)
			fmt.Fprintf(out, "Computer (%s) plays row %d, col %d\n", g.Computer, row+1, col+1)
			continue
		}

		fmt.Fprintf(out, "%s\nYour move (%s): ", g.Board.Format(), g.Human)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return errors.New("input closed before the game finished")
		}
		idx, err := parseMove(scanner.Text())
		if err == nil {
			err = g.Play(g.Human, idx)
		}
		if err != nil {
			fmt.Fprintf(out, "Try again: %v\n", err)
		}
	}

	fmt.Fprintln(out, g.Board.Format())
	switch {
	case g.Outcome.Winner == g.Human:
		fmt.Fprintln(out, "You win!")
	case g.Outcome.HasWinner():
		fmt.Fprintln(out, "Computer wins.")
	default:
		fmt.Fprintln(out, "It's a tie.")
	}
	return nil
}

func parseMove(s string) (int, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return strconv.Atoi(fields[0])
	case 2:
		row, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, err
		}
		col, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, err
		}
		if row < 1 || row > 3 || col < 1 || col > 3 {
			return 0, game.ErrOutOfBounds
		}
		return game.Index(row-1, col-1), nil
	}
	return 0, errors.New(`enter "row col" or a cell index`)
}

// toMove infers the side to move: X unless X already has more marks.
func toMove(b game.Board) game.Mark {
	if b.Count(game.X) > b.Count(game.O) {
		return game.O
	}
	return game.X
}

func describe(o game.Outcome) string {
	switch {
	case o.HasWinner():
		return fmt.Sprintf("%s wins on %v", o.Winner, o.Line)
	case o.Tied:
		return "tie"
	}
	return "game continues"
}
