package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ctchen222/Tic-Tac-Toe-Banter/internal/api/models"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("api.repository")

const userColumns = `id, username, password_hash, player_id`

//go:generate mockgen -source=user_repository.go -destination=mocks/mock_user_repository.go -package=mocks

// UserRepository stores accounts. Lookups return (nil, nil) when no row
// matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User, password string) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindByPlayerID(ctx context.Context, playerID string) (*models.User, error)
}

type sqliteUserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &sqliteUserRepository{db: db}
}

// CreateUser stores user with a bcrypt hash of password and fills in its id.
func (r *sqliteUserRepository) CreateUser(ctx context.Context, user *models.User, password string) error {
	ctx, span := tracer.Start(ctx, "repository.CreateUser", trace.WithAttributes(
		attribute.String("player.id", user.PlayerID),
	))
	defer span.End()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to hash password")
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashed)

	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (username, password_hash, player_id) VALUES (:username, :password_hash, :player_id)`, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert user")
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		user.ID = id
	}
	return nil
}

func (r *sqliteUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "repository.GetUserByUsername", `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *sqliteUserRepository) FindByPlayerID(ctx context.Context, playerID string) (*models.User, error) {
	return r.getOne(ctx, "repository.FindByPlayerID", `SELECT `+userColumns+` FROM users WHERE player_id = ?`, playerID)
}

func (r *sqliteUserRepository) getOne(ctx context.Context, spanName, query string, arg string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	var user models.User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return &user, nil
}
