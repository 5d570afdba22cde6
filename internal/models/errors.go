package models

import "errors"

// Custom errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key violation")
	ErrInvalidID        = errors.New("invalid ID format")
	ErrInvalidContest   = errors.New("contest payload is missing entries or resolvable competitors")
	ErrInsufficientData = errors.New("fewer than 2 valid placements in contest")
	ErrJobConflict      = errors.New("an auto-tune job is already running")
	ErrJobNotFound      = errors.New("auto-tune job not found")
	ErrJobNotRunning    = errors.New("auto-tune job is not running")
	ErrEmptyGrid        = errors.New("hyperparameter grid produces no combinations")
)
