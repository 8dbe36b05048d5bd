package controller

import (
	"errors"
	"net/http"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/response"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/service"

	"github.com/gin-gonic/gin"
)

// UserController handles user-related HTTP requests.
type UserController struct {
	userService service.UserService
}

// NewUserController creates a new UserController.
func NewUserController(userService service.UserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

// Register handles the user registration endpoint.
func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(response.Wrap(http.StatusBadRequest, err))
		return
	}

	playerID, err := uc.userService.Register(c.Request.Context(), &req)
	if errors.Is(err, service.ErrUsernameTaken) {
		_ = c.Error(response.Wrap(http.StatusConflict, err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.SuccessResponse(c, models.PlayerResponse{PlayerID: playerID})
}

// Login handles the user login endpoint.
func (uc *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(response.Wrap(http.StatusBadRequest, err))
		return
	}

	resp, err := uc.userService.Login(c.Request.Context(), &req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		_ = c.Error(response.Wrap(http.StatusUnauthorized, err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.SuccessResponse(c, resp)
}

// GuestLogin handles guest login, returning a generated player ID.
func (uc *UserController) GuestLogin(c *gin.Context) {
	playerID, err := uc.userService.GuestLogin(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.SuccessResponse(c, models.PlayerResponse{PlayerID: playerID})
}
