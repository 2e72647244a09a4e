package command

import "errors"

// ErrNoPublisher indicates a response was requested but no publisher is set.
var ErrNoPublisher = errors.New("command: no response publisher configured")
