package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrGatewayFault    = errors.New("market gateway fault")
	ErrValidation      = errors.New("pick validation failed")
	ErrUnknownCategory = errors.New("unknown option category")
	ErrLockHeld        = errors.New("lock already held")
)
