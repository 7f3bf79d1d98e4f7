package simulation

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNeighborBufferTooLarge is returned when the N*N neighbor buffer would exceed its budget.
	ErrNeighborBufferTooLarge = errors.New("neighbor buffer too large")
	// ErrAgentCount is returned for an empty population or an agent index out of range.
	ErrAgentCount = errors.New("invalid agent count")
	// ErrInvalidDelta is returned by Advance for a negative or non-finite elapsed time.
	ErrInvalidDelta = errors.New("invalid elapsed time")
	// ErrClosed is returned once the simulation has been shut down.
	ErrClosed = errors.New("simulation is shut down")
)
