package paper

import "errors"

var (
	// ErrUpstream is returned when the model provider fails to answer.
	ErrUpstream = errors.New("generation request failed")

	// ErrInvalidGeneration is returned when the model's reply cannot be
	// parsed into the expected exam-paper document. Retrying the same
	// request is not expected to fix this.
	ErrInvalidGeneration = errors.New("invalid generation response")
)
