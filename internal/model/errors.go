package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound marks a missing content item, user or fingerprint.
	ErrNotFound = goerr.New("not found")
	// ErrValidation marks malformed caller input.
	ErrValidation = goerr.New("validation failed")
	// ErrTransient marks an unavailable store; callers may retry.
	ErrTransient = goerr.New("store unavailable")
)
