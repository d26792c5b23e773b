package service

import "errors"

// Sentinel errors mapped to HTTP status codes by the handler layer.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrOTPExpired    = errors.New("otp expired")
	ErrOTPMismatch   = errors.New("otp mismatch")
)
