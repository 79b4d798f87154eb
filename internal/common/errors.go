// Package common defines shared constants and sentinel errors used across
// client and server layers of GophJournal. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrInternal        = errors.New("internal error")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("server unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Sync engine errors.
	ErrNotSignedIn         = errors.New("not signed in")
	ErrRestoreInProgress   = errors.New("restore already in progress")
	ErrUnknownFamily       = errors.New("unknown entity family")
	ErrMissingRemoteFields = errors.New("remote document is missing required fields")
)
