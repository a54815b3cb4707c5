package types

import "errors"

// Error taxonomy shared by every package. Wrap with %w or errors.Join and test with errors.Is.
var (
	ErrDataUnavailable      = errors.New("data unavailable")
	ErrInvalidInput         = errors.New("invalid input")
	ErrExecutionFailed      = errors.New("execution failed")
	ErrConfigurationMissing = errors.New("configuration missing")
)
