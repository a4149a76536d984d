package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDecodeFailed    = errors.New("image decode failed")
	ErrNoImage         = errors.New("no base image loaded")
	ErrProviderFailure = errors.New("provider failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrSessionStale    = errors.New("session superseded")
)
