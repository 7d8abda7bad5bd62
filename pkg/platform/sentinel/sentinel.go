package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//
//   - ErrNotFound: no row or key for the lookup
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrExpired: a TTL-bound record is gone or past its deadline
//   - ErrAlreadyUsed: a single-use record was consumed
//   - ErrUnavailable: the backing store cannot be reached
//
// Validation failures belong in pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
