package grid

import "errors"

// Domain-specific errors for message resolution.
// Any of these aborts the whole message; nothing is dispatched.
var (
	// ErrInvalidTopic is returned when the topic lacks the command prefix.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrMalformedPayload is returned when the message or its nested
	// command body is not a parseable JSON object.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrMissingTargets is returned when neither subtopics nor a query are given.
	ErrMissingTargets = errors.New("no targets specified")

	// ErrInvalidStatus is returned when status is present but not 0 or 1.
	ErrInvalidStatus = errors.New("invalid payload status")
)
