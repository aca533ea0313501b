package domain

import "errors"

// Failure taxonomy shared across services and adapters. Adapters map
// these to transport status codes; services wrap them with context via
// fmt.Errorf("...: %w", Err...).
var (
	ErrNotFound    = errors.New("not found")
	ErrGone        = errors.New("room is no longer active")
	ErrForbidden   = errors.New("forbidden")
	ErrConflict    = errors.New("conflict")
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limited")
)
