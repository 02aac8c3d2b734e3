package simulation

import "errors"

var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrDuplicateAgent   = errors.New("agent name already in use")
	ErrInvalidTarget    = errors.New("target must be a finite vector")
	ErrInvalidTicker    = errors.New("tick interval must be positive")
	ErrTickSourceClosed = errors.New("tick source closed")
)
