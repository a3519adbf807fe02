package auth

import "errors"

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden indicates the caller may not touch the resource.
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")
)
