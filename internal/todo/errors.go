package todo

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("todo not found")
	ErrNoSuchUser = errors.New("no such user")
)

type NotFoundError struct {
	Caller string
	ID     uint64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("todo not found: %d", e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

type NoSuchUserError struct {
	Caller string
}

func (e NoSuchUserError) Error() string {
	// Keep the caller out of the message; it ends up in client-visible payloads.
	return "no such user"
}

func (e NoSuchUserError) Is(target error) bool { return target == ErrNoSuchUser }
