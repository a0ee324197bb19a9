// Package scheduler runs a background task on a fixed interval.
package scheduler

import "errors"

var (
	ErrAlreadyRunning  = errors.New("scheduler is already running")
	ErrNotRunning      = errors.New("scheduler is not running")
	ErrInvalidInterval = errors.New("scheduler interval must be positive")
)
