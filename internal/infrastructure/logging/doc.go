// Package logging provides structured logging for gridswitch.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text during development, with the service name and build
// version attached to every record.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("command dispatched", "command_id", id, "targets", len(targets))
//
// Never log MQTT, etcd or InfluxDB credentials, or JWT secrets.
package logging
