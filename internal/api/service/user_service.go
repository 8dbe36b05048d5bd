package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Banter/internal/api/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// UserService defines the interface for user-related business logic.
type UserService interface {
	// Register creates an account and returns its player id.
	Register(ctx context.Context, req *models.RegisterRequest) (string, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	GuestLogin(ctx context.Context) (string, error)
	// PlayerFromToken returns the player id a login token was issued for,
	// provided that account still exists.
	PlayerFromToken(ctx context.Context, token string) (string, error)
}

type userService struct {
	userRepo repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

// NewUserService creates a new UserService signing tokens with secret.
func NewUserService(userRepo repository.UserRepository, secret string, tokenTTL time.Duration) UserService {
	return &userService{userRepo: userRepo, secret: []byte(secret), tokenTTL: tokenTTL}
}

func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (string, error) {
	existing, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrUsernameTaken
	}

	user := &models.User{
		Username: req.Username,
		PlayerID: uuid.NewString(),
	}
	if err := s.userRepo.CreateUser(ctx, user, req.Password); err != nil {
		return "", err
	}
	return user.PlayerID, nil
}

// Login handles user login and returns a JWT on success.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.PlayerID,
		"un":  user.Username,
		"exp": time.Now().Add(s.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &models.LoginResponse{Token: tokenString, PlayerID: user.PlayerID}, nil
}

// GuestLogin generates a UUID for a guest player.
func (s *userService) GuestLogin(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// PlayerFromToken validates an HS256 token and returns its subject. Tokens
// outlive accounts, so the subject must still belong to a stored user.
func (s *userService) PlayerFromToken(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}
	user, err := s.userRepo.FindByPlayerID(ctx, subject)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("%w: no account for player %s", ErrInvalidToken, subject)
	}
	return subject, nil
}
