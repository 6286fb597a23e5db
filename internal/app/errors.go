package app

import "errors"

var (
	// ErrUnauthenticated means no valid session accompanied the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the session is valid but does not own the target
	// resource. Deliberately carries no hint of whether the resource exists.
	ErrForbidden = errors.New("forbidden")

	// ErrBadCredentials means the presented sign-in secret resolved to no
	// account.
	ErrBadCredentials = errors.New("sign-in secret not valid")
)
