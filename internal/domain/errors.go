package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an article with the same content hash is already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition is matched by every InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAllProvidersBlocked is the defined outcome when no provider of a capability can serve today.
	ErrAllProvidersBlocked = errors.New("all providers blocked")

	// ErrProviderFailed is returned when a stop-on-failure capability hits a non rate-limit error.
	ErrProviderFailed = errors.New("provider failed")
)

// InvalidTransitionError is a data-integrity error and must never be coerced into a valid state.
type InvalidTransitionError struct {
	ArticleID int64
	From      Status
	To        Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("article %d: illegal transition %s -> %s", e.ArticleID, e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// DurabilityError wraps a failed commit of select, rotation, decision or block state.
// It is fatal to the current run.
type DurabilityError struct {
	Op  string
	Err error
}

func (e *DurabilityError) Error() string {
	return fmt.Sprintf("durability failure in %s: %v", e.Op, e.Err)
}

func (e *DurabilityError) Unwrap() error {
	return e.Err
}

// Durability wraps err as a DurabilityError; nil stays nil.
// Data-integrity errors are returned as is so they keep surfacing loudly.
func Durability(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidTransition) {
		return err
	}
	var de *DurabilityError
	if errors.As(err, &de) {
		return err
	}
	return &DurabilityError{Op: op, Err: err}
}

// IsDurability reports whether err carries a DurabilityError.
func IsDurability(err error) bool {
	var de *DurabilityError
	return errors.As(err, &de)
}
