package core

import (
	"errors"
)

var (
	// ErrInvalidArgument is returned when an input is rejected before any device call is made.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPoolExhausted is matched by descriptor allocations that failed because the pool is
	// out of memory or fragmented. The owner decides whether to recreate the pool.
	ErrPoolExhausted = errors.New("descriptor pool exhausted")

	// ErrSetRetired is returned when a descriptor set already queued for release is used again.
	ErrSetRetired = errors.New("descriptor set already queued for release")

	ErrDisposed       = errors.New("object already disposed")
	ErrUnknownHandle  = errors.New("handle not owned by this object")
	ErrShaderNotFound = errors.New("shader source not found")
)
