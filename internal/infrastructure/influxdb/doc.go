// Package influxdb records command outcomes in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Writes go through the
// non-blocking batched write API, so recording never slows a dispatch down;
// asynchronous write failures are delivered to the SetOnError callback.
//
// Each dispatched target produces one command_outcome point tagged with the
// plug address, the requested state and the result (success, failure or
// timeout), carrying the command ID and failure reason as fields.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // recording switched off
//	}
//	defer client.Close()
//
//	client.WriteTargetOutcome(commandID, "10.0.0.12", true, "failure", "Timeout", time.Now())
package influxdb
