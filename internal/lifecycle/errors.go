package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/edvin/domains/internal/model"
)

var (
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	ErrRateLimited       = errors.New("check rate limited")
	ErrInvalidHostname   = errors.New("invalid hostname")
	ErrReservedHostname  = errors.New("hostname is reserved by the platform")
	ErrInvalidSlug       = errors.New("invalid slug")
	ErrNotVerified       = errors.New("domain ownership not verified")
)

// TransitionError rejects an operation that the domain's current state does
// not permit. The record is left untouched.
type TransitionError struct {
	Op   string
	From string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed from state %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func transitionError(op string, from model.DomainStatus) error {
	return &TransitionError{Op: op, From: string(from)}
}

// RateLimitError rejects a check requested before the stored next-allowed
// time.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("next check allowed in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
