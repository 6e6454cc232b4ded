package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrVenueUnknown   = errors.New("unknown venue")
	ErrNoPrice        = errors.New("no usable price")
	ErrOrderNotFilled = errors.New("order not filled")
	ErrNotProfitable  = errors.New("trade no longer profitable")
	ErrInsufficient   = errors.New("insufficient balance")
	ErrMonitorRunning = errors.New("monitoring already active")
	ErrMonitorStopped = errors.New("monitoring not active")
	ErrLockHeld       = errors.New("lock already held")
)
