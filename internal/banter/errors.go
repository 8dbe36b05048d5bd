package banter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Kind classifies a banter failure.
type Kind int

const (
	KindFailure Kind = iota
	KindMissingCredential
	KindRateLimited
	KindUnauthorized
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// Error is returned by every Generator in this package.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("banter %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("banter %s: %s", e.Kind, e.Message())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the text shown to the player in the chat panel.
func (e *Error) Message() string {
	switch e.Kind {
	case KindMissingCredential:
		return "OpenAI API key not configured. Set TTT_BANTER_API_KEY or OPENAI_API_KEY."
	case KindRateLimited:
		return "Rate limited by OpenAI. Please wait a moment and try again."
	case KindUnauthorized:
		return "Unauthorized: Invalid OpenAI API key."
	case KindTimeout:
		return "Chatbot took too long to respond. Try another move!"
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.Status != 0 {
		return fmt.Sprintf("OpenAI request failed with status %d.", e.Status)
	}
	return "Chatbot failed to respond."
}

// KindOf reports the kind of a banter error, or KindFailure for anything else.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindFailure
}

func classify(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	status, detail := 0, ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, detail = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Status: status, Err: err}
	case http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, Status: status, Err: err}
	}
	return &Error{Kind: KindFailure, Status: status, Detail: detail, Err: err}
}
