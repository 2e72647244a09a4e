package directory

import "errors"

// Domain-specific errors for the address directory.
var (
	// ErrStoreRead is returned when the backing store cannot be read.
	// The previous snapshot stays in place.
	ErrStoreRead = errors.New("directory: store read failed")
)
