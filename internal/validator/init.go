package validator

import (
	"ctchen222/Tic-Tac-Toe-Banter/internal/game"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	// Initialize validation
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustom(validate); err != nil {
		panic(err)
	}
}

func GetValidator() *validator.Validate {
	return validate
}

// RegisterCustom adds the game specific tags to v:
//
//	mark  - "X" or "O", either case
//	cell  - empty or a mark
func RegisterCustom(v *validator.Validate) error {
	if err := v.RegisterValidation("mark", validateMark); err != nil {
		return err
	}
	return v.RegisterValidation("cell", validateCell)
}

func validateMark(fl validator.FieldLevel) bool {
	_, err := game.ParseMark(fl.Field().String())
	return err == nil
}

func validateCell(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := game.ParseMark(s)
	return err == nil
}
