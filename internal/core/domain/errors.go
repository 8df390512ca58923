package domain

import "errors"

var (
	// ErrInvalidArgument is returned when a time-of-day offset is outside [0, 24h)
	ErrInvalidArgument = errors.New("invalid argument")

	ErrPatientNotFound  = errors.New("patient not found")
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrInvalidTimezone  = errors.New("invalid timezone")
	ErrInvalidParameter = errors.New("invalid parameter change")
	ErrInvalidReading   = errors.New("invalid reading")
)
