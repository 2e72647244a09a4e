package smartplug

import "errors"

// Domain-specific errors for device exchanges.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDecode is returned when a framed response is too short to carry a length prefix.
	ErrDecode = errors.New("smartplug: invalid or empty response frame")

	// ErrDeviceUnreachable is returned when the TCP connection cannot be opened.
	ErrDeviceUnreachable = errors.New("smartplug: device unreachable")

	// ErrDeviceProtocol is returned when the exchange fails after connecting
	// (write, read, decode or JSON parse).
	ErrDeviceProtocol = errors.New("smartplug: device protocol error")

	// ErrNoResponse is returned when the device closes the connection without replying.
	ErrNoResponse = errors.New("smartplug: no response")
)
