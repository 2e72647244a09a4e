package mqtt

import "strings"

// TopicSystemStatus carries the retained online/offline status of the service.
const TopicSystemStatus = "gridswitch/system/status"

// CommandFilter returns the subscription filter for a command topic prefix.
// The multi-level wildcard also matches the bare prefix itself.
//
// Example: command/sp_command -> command/sp_command/#
func CommandFilter(shortTopic string) string {
	return strings.TrimSuffix(shortTopic, "/") + "/#"
}
