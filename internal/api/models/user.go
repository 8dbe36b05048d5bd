package models

// User is an account row. PlayerID is the identity games are stored under;
// guests get one without a User.
type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	PlayerID     string `db:"player_id"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Password string `json:"password" binding:"required,min=6,max=50"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// PlayerResponse carries the player id for a new account or a guest.
type PlayerResponse struct {
	PlayerID string `json:"player_id"`
}

// LoginResponse holds the websocket token and the player it was issued for.
type LoginResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"player_id"`
}
