package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed    = errors.New("negotiation: session closed")
	ErrRoleUndetermined = errors.New("negotiation: role undetermined")
	ErrConnectionFailed = errors.New("negotiation: connection failed")

	errNoConnection = errors.New("negotiation: no connection")
)

// Error is a failed negotiation step. The Session that produced it is Closed.
type Error struct {
	Room string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("negotiation %s: %s: %v", e.Room, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
