package main

import "fmt"

// ErrKind classifies operation failures. Every failure is recoverable
// by the caller; the gateway converts it to an error notice on the
// originating connection and nothing else.
type ErrKind int

const (
	ErrUnauthenticated ErrKind = iota + 1
	ErrNotFound
	ErrConflict
	ErrInvalidState
	ErrInvalidInput
)

func (k ErrKind) String() string {
	switch k {
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	case ErrInvalidState:
		return "invalid_state"
	case ErrInvalidInput:
		return "invalid_input"
	}
	return "unknown"
}

// GameError is the typed result returned by room, registry and
// matchmaking operations in place of control-flow exceptions.
type GameError struct {
	Kind ErrKind
	Msg  string
}

func (e *GameError) Error() string { return e.Msg }

func errf(kind ErrKind, format string, args ...interface{}) *GameError {
	return &GameError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
