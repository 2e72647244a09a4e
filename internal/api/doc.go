// Package api implements the optional HTTP API and WebSocket feed of gridswitch.
//
// This package provides:
//   - Read access to the address directory and the grid layout
//   - Command submission using the same payload as the bus
//   - Single-device sysinfo probes
//   - A WebSocket feed of command.completed events
//   - Prometheus exposition on /metrics
//
// # Security
//
// Every /api/v1 route except /health requires a bearer JWT issued by the
// auth package. Each route checks one permission of the caller's role.
// The WebSocket endpoint takes the token as a query parameter because
// browsers cannot set headers on the upgrade request.
//
// # Graceful Degradation
//
// The server runs without MQTT; commands submitted over HTTP are answered
// in the HTTP response and only bus replies are unavailable.
package api
