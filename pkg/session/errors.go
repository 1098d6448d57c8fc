package session

import "errors"

// Errors returned by Store.Create.
var (
	ErrInvalidParam = errors.New("session: invalid parameter")
	ErrStringTaken  = errors.New("session: session string unavailable")
)

// Errors returned by Store.Join, each corresponding to a distinct wire
// ErrorCode per spec.md §4.5's join policy.
var (
	ErrSessionNotFound  = errors.New("session: not found")
	ErrInvalidSignature = errors.New("session: invalid signature")
	ErrSessionFull      = errors.New("session: full")
	ErrInvalidPassword  = errors.New("session: invalid password")
)

// ErrNotHost is returned by Store.End when the signature belongs to a
// participant other than the current host.
var ErrNotHost = errors.New("session: signer is not the host")
