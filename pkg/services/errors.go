package services

import "errors"

// Service errors.
var (
	// ErrInvestigationNotFound is returned for unknown investigation ids.
	ErrInvestigationNotFound = errors.New("investigation not found")

	// ErrInvalidGoal is returned when a creation request has an empty goal.
	ErrInvalidGoal = errors.New("goal must not be empty")
)
