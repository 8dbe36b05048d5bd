package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is an error that knows its HTTP status.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a status to err, keeping err's text as the message.
func Wrap(code int, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Errors without a status become 500s with a generic message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var re *Error
		if errors.As(err, &re) {
			ErrorResponse(c, re.Code, re.Message)
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, "internal server error")
	}
}
