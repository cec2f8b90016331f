package publisher

import "errors"

// Sentinel errors for the event publishers.
var (
	// ErrDisabled is returned by Connect when the integration is switched off.
	ErrDisabled = errors.New("publisher: disabled in configuration")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("publisher: connection failed")

	// ErrNotConnected is returned when publishing on a closed or lost connection.
	ErrNotConnected = errors.New("publisher: not connected")

	// ErrPublishFailed is returned when the broker does not accept a message.
	ErrPublishFailed = errors.New("publisher: publish failed")
)
