package controller

import (
	"errors"
	"net/http"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/response"
	"ctchen222/Tic-Tac-Toe-Banter/internal/repository"

	"github.com/gin-gonic/gin"
)

// GameController serves read-only views of live games.
type GameController struct {
	gameRepo repository.GameRepository
}

func NewGameController(gameRepo repository.GameRepository) *GameController {
	return &GameController{gameRepo: gameRepo}
}

// Get returns the current state of the game named by the :id path parameter.
func (gc *GameController) Get(c *gin.Context) {
	state, err := gc.gameRepo.FindByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrGameNotFound) {
		_ = c.Error(response.Wrap(http.StatusNotFound, err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	g := state.Game
	resp := models.GameResponse{
		ID:         state.ID,
		Board:      g.Board.Cells(),
		Human:      g.Human,
		Computer:   g.Computer,
		Winner:     g.Outcome.Winner,
		Tied:       g.Outcome.Tied,
		Moves:      g.Moves,
		Difficulty: state.Difficulty,
		UpdatedAt:  state.UpdatedAt,
	}
	if !g.Over() {
		resp.Turn = g.Turn
	}
	if g.Outcome.HasWinner() {
		resp.Line = g.Outcome.Line[:]
	}
	response.SuccessResponse(c, resp)
}
