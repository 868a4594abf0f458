package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound              = errors.New("campaign not found")
	ErrInvalidState          = errors.New("invalid status transition")
	ErrInvalidPlanParameters = errors.New("invalid ramp plan parameters")
	ErrConflict              = errors.New("concurrent version snapshot conflict")
)
