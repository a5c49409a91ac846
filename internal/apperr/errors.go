// Package apperr defines the sentinel errors shared by the stores, the
// document service and the web layer.
package apperr

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrInvalidName           = errors.New("invalid name")
	ErrAuthenticationFailed  = errors.New("invalid credentials")
	ErrAuthorizationRequired = errors.New("sign in required")
)

// NameError reports why a file name was rejected. Reason is shown to users
// verbatim.
type NameError struct {
	Name   string
	Reason string
}

func (e *NameError) Error() string { return e.Reason }

// Unwrap lets errors.Is match ErrInvalidName.
func (e *NameError) Unwrap() error { return ErrInvalidName }
