// Package common defines shared constants and sentinel errors used across
// the server, store and console layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound       = errors.New("not found")
	ErrStoreCorrupted = errors.New("store document corrupted")
	ErrPersistence    = errors.New("persistence failed")

	// Protocol errors reported back to the originating connection.
	ErrAuthRejected   = errors.New("auth rejected")
	ErrInvalidPayload = errors.New("invalid payload")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
