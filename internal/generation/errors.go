package generation

import "errors"

// Common errors returned by generation adapters and the provider registry.
var (
	// ErrUnknownProvider is returned when no adapter is registered for a provider key.
	ErrUnknownProvider = errors.New("unknown generation provider")

	// ErrUpstream is returned when the provider rejects the request or the call fails.
	ErrUpstream = errors.New("upstream generation failed")

	// ErrProtocolViolation is returned when an upstream reports an unexpected
	// finish reason or an adapter breaks the event sequence.
	ErrProtocolViolation = errors.New("generation protocol violation")

	// ErrInvalidResponse is returned when the upstream response cannot be parsed.
	ErrInvalidResponse = errors.New("invalid response from generation provider")

	// ErrNoFinish is returned when an upstream stream ends without a finish event.
	ErrNoFinish = errors.New("generation ended without a finish event")

	// ErrInvalidConfig is returned when an adapter is constructed with an invalid configuration.
	ErrInvalidConfig = errors.New("invalid generation provider configuration")
)
