package db

import "errors"

// Sentinel errors translated from pgx.ErrNoRows / constraint violations
// at the repository boundary, the way persistence.ErrNotFound/
// ErrForbidden are used in the teacher's chat store.
var (
	ErrNotFound        = errors.New("db: not found")
	ErrAlreadyExists   = errors.New("db: already exists")
	ErrConstraintFailed = errors.New("db: constraint violation")
)
