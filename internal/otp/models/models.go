package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxAttempts = 3
	CodeLength         = 6
)

var (
	// ErrExpired covers both a never-issued and an expired code.
	ErrExpired = errors.New("otp not found or expired")
	// ErrTooManyAttempts is returned once the attempt budget is spent; the
	// record is gone and a new code must be requested.
	ErrTooManyAttempts = errors.New("too many failed attempts")
)

// InvalidCodeError reports a wrong code and the attempts left.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.Remaining)
}

// Outcome is the result of one atomic check against a stored code.
type Outcome int

const (
	OutcomeExpired Outcome = iota
	OutcomeLocked
	OutcomeMismatch
	OutcomeMatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExpired:
		return "expired"
	case OutcomeLocked:
		return "locked"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeMatch:
		return "match"
	default:
		return "unknown"
	}
}

// CheckResult carries the outcome and the attempt count after the check.
type CheckResult struct {
	Outcome  Outcome
	Attempts int
}
