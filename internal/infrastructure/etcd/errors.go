package etcd

import "errors"

// Sentinel errors for etcd operations.
var (
	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("etcd: connection failed")

	// ErrRequestFailed indicates a KV request failed after connecting.
	ErrRequestFailed = errors.New("etcd: request failed")

	// ErrNoEndpoints indicates the configuration lists no endpoints.
	ErrNoEndpoints = errors.New("etcd: no endpoints configured")
)
