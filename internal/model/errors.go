package model

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBadArchive is returned when an archive file is not a well-formed
	// HAR capture (missing log.entries, wrong top-level shape).
	ErrBadArchive = errors.New("malformed web archive")

	// ErrUnauthorized covers missing, expired and invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInjectionAttempt is returned when a search filter references a
	// column outside the allowed set for its table.
	ErrInjectionAttempt = errors.New("filter references disallowed column")

	// ErrTranscoderUnavailable is returned when the external media toolchain
	// cannot be found on the host.
	ErrTranscoderUnavailable = errors.New("media transcoder not available")

	// ErrInvalidToken is returned when a file or auth token fails to decode
	// or authenticate.
	ErrInvalidToken = errors.New("invalid token")

	// ErrLocked is returned on login attempts against a locked user.
	ErrLocked = errors.New("user is locked")
)
