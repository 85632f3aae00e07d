package lotto

import (
	"strings"

	appErr "lotto-service/pkg/errors"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindInvariant  ErrorKind = "invariant_violation"
)

// Error is the structured failure returned by every engine operation.
// Callers match on the kind through errors.Is against appErr.ErrValidation
// or appErr.ErrInvariantViolation, and read the offending players through errors.As.
type Error struct {
	Kind    ErrorKind
	Message string
	Players []PlayerID
}

func (e *Error) Error() string {
	if len(e.Players) == 0 {
		return e.Message
	}
	return e.Message + ": " + joinPlayers(e.Players)
}

func (e *Error) Unwrap() error {
	if e.Kind == KindInvariant {
		return appErr.ErrInvariantViolation
	}
	return appErr.ErrValidation
}

func validationError(msg string, players ...PlayerID) *Error {
	return &Error{Kind: KindValidation, Message: msg, Players: players}
}

func invariantError(msg string, players ...PlayerID) *Error {
	return &Error{Kind: KindInvariant, Message: msg, Players: players}
}

func joinPlayers(ids []PlayerID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// NewValidationError reports a rule enforced around the engine, such as a
// card closer named twice by the service layer.
func NewValidationError(msg string, players ...PlayerID) *Error {
	return validationError(msg, players...)
}
