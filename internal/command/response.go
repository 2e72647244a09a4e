package command

import "github.com/nerrad567/gridswitch/internal/dispatch"

// ResponseData is the data object of a successful response.
type ResponseData struct {
	Successful []string `json:"successful"`
}

// Response is published to a message's response_topic.
//
// After a dispatch Data holds the successful addresses and Error is the
// address -> reason map. After a parse failure Data is omitted and Error is
// the failure description.
type Response struct {
	CommandID string        `json:"command_id"`
	Data      *ResponseData `json:"data,omitempty"`
	Error     any           `json:"error"`
}

// NewOutcomeResponse builds the response for a completed dispatch.
func NewOutcomeResponse(commandID string, outcome dispatch.Outcome) Response {
	failed := outcome.Failed
	if failed == nil {
		failed = map[string]string{}
	}
	return Response{
		CommandID: commandID,
		Data:      &ResponseData{Successful: outcome.SuccessfulAddresses()},
		Error:     failed,
	}
}

// NewErrorResponse builds the response for a message that did not resolve.
func NewErrorResponse(commandID string, err error) Response {
	return Response{
		CommandID: commandID,
		Error:     err.Error(),
	}
}
