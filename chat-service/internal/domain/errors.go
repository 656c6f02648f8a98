package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrNotIdentified     = errors.New("connection has not identified")
	ErrFrozen            = errors.New("chat is frozen")
	ErrAdminOnly         = errors.New("chat is admin only")
	ErrUnauthorized      = errors.New("admin privileges required")
	ErrInvalidCredential = errors.New("invalid credential")
)

// BlockedError rejects a send from a banned or timed out author.
type BlockedError struct {
	Block Block
	// RateLimited is set when the block was just applied by the send throttle.
	RateLimited bool
}

func (e *BlockedError) Error() string {
	if e.Block.Kind == TimedOut {
		return fmt.Sprintf("author timed out until %d", e.Block.Until)
	}
	return "author banned"
}

// Wire error codes understood by clients.
const (
	CodeInvalidData   = "invalidData"
	CodeNotIdentified = "notIdentified"
	CodeBanned        = "banned"
	CodeTimeout       = "timeout"
	CodeFrozen        = "frozen"
	CodeAdminOnly     = "adminOnly"
	CodeUnauthorized  = "unauthorized"
	CodeInvalidAPIKey = "invalidApiKey"
)

// CodeFor maps a command error to its wire code. until is set for
// temporary blocks.
func CodeFor(err error) (code string, until *int64) {
	var blocked *BlockedError
	switch {
	case errors.As(err, &blocked):
		if blocked.Block.Kind == TimedOut {
			u := blocked.Block.Until
			return CodeTimeout, &u
		}
		return CodeBanned, nil
	case errors.Is(err, ErrNotIdentified):
		return CodeNotIdentified, nil
	case errors.Is(err, ErrFrozen):
		return CodeFrozen, nil
	case errors.Is(err, ErrAdminOnly):
		return CodeAdminOnly, nil
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, nil
	case errors.Is(err, ErrInvalidCredential):
		return CodeInvalidAPIKey, nil
	default:
		return CodeInvalidData, nil
	}
}

// NewErrorFor builds the error frame for a command error.
func NewErrorFor(err error) *ErrorMessage {
	code, until := CodeFor(err)
	return &ErrorMessage{Type: MsgTypeError, Message: code, Until: until}
}
