package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth marks a failed authentication: credentials don't fix
	// themselves, so retries are pointless past a small number of attempts.
	ErrAuth = errors.New("authentication failure")
	// ErrTransport marks a network level failure, expected to heal on its own.
	ErrTransport = errors.New("transport failure")
	// ErrSession marks the current session as dead: the caller must open a
	// new one, not retry on this one.
	ErrSession = errors.New("session invalid")
)

func authError(err error) error {
	return fmt.Errorf("%w: %v", ErrAuth, err)
}

func transportError(err error) error {
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func sessionError(err error) error {
	return fmt.Errorf("%w: %v", ErrSession, err)
}
