package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementCommandOutcome is the measurement holding per-target results.
const MeasurementCommandOutcome = "command_outcome"

// WriteTargetOutcome records the result of one target of one command.
//
// Parameters:
//   - commandID: Correlates all targets of a command
//   - address: The plug's network address
//   - on: The requested relay state
//   - result: "success", "failure" or "timeout"
//   - reason: Failure reason, empty on success
//   - at: When the outcome was settled
func (c *Client) WriteTargetOutcome(commandID, address string, on bool, result, reason string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]any{
		"command_id": commandID,
		"value":      1,
	}
	if reason != "" {
		fields["reason"] = reason
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementCommandOutcome,
		map[string]string{
			"address": address,
			"state":   strconv.FormatBool(on),
			"result":  result,
		},
		fields,
		at,
	))
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
