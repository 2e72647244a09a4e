package grid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
)

// Field names of an inbound command message.
const (
	FieldSubtopics     = "subtopics"
	FieldPayload       = "payload"
	FieldStatus        = "status"
	FieldResponseTopic = "response_topic"
	FieldCommandID     = "command_id"
)

const (
	rowSelector    = "row"
	columnSelector = "column"
)

// Lookup resolves a plug identifier to its network address.
// directory.Snapshot satisfies it.
type Lookup interface {
	Lookup(id string) (string, bool)
}

// ID returns the identifier of the plug at row, col.
func ID(row, col int) string {
	return fmt.Sprintf("w.r%d.c%d", row, col)
}

// Resolver parses command messages for one grid layout and topic prefix.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	shortTopic string
	rows       int
	columns    int
}

// NewResolver creates a resolver for the grid section of config.yaml.
func NewResolver(cfg config.GridConfig) *Resolver {
	return &Resolver{
		shortTopic: cfg.ShortTopic,
		rows:       cfg.Rows,
		columns:    cfg.Columns,
	}
}

// ShortTopic returns the command topic prefix.
func (r *Resolver) ShortTopic() string {
	return r.shortTopic
}

// Rows returns the number of rows in the grid.
func (r *Resolver) Rows() int {
	return r.rows
}

// Columns returns the number of columns in the grid.
func (r *Resolver) Columns() int {
	return r.columns
}

// RowIDs returns the identifiers of every column in row, ascending.
// row is used verbatim and is not range checked.
func (r *Resolver) RowIDs(row string) []string {
	ids := make([]string, 0, r.columns)
	for c := range r.columns {
		ids = append(ids, fmt.Sprintf("w.r%s.c%d", row, c))
	}
	return ids
}

// ColumnIDs returns the identifiers of every row in col, ascending.
// col is used verbatim and is not range checked.
func (r *Resolver) ColumnIDs(col string) []string {
	ids := make([]string, 0, r.rows)
	for row := range r.rows {
		ids = append(ids, fmt.Sprintf("w.r%d.c%s", row, col))
	}
	return ids
}

// message is the top-level JSON document of a command.
type message struct {
	Subtopics *[]string       `json:"subtopics"`
	Payload   json.RawMessage `json:"payload"`
}

// Resolve parses one command message into target addresses and the
// requested relay state.
//
// Checks run in order: topic prefix, message JSON, nested payload, status,
// targets. The first failure is returned wrapped around one of the package
// sentinel errors, together with nil targets and status false.
//
// Parameters:
//   - topic: The MQTT topic the message arrived on
//   - payload: The raw message body
//   - dir: The directory snapshot to resolve identifiers against
//
// Returns:
//   - []string: Addresses in selector order, duplicates kept
//   - bool: true to switch on, false to switch off (also when status is absent)
//   - error: Nil on success
func (r *Resolver) Resolve(topic string, payload []byte, dir Lookup) ([]string, bool, error) {
	query, ok := strings.CutPrefix(topic, r.shortTopic)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s, it should start with %s", ErrInvalidTopic, topic, r.shortTopic)
	}
	query = strings.TrimPrefix(query, "/")

	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	body, err := parseBody(msg.Payload)
	if err != nil {
		return nil, false, err
	}

	status, err := parseStatus(body[FieldStatus])
	if err != nil {
		return nil, false, err
	}

	var selectors []string
	switch {
	case msg.Subtopics != nil:
		selectors = make([]string, 0, len(*msg.Subtopics))
		for _, st := range *msg.Subtopics {
			selectors = append(selectors, query+st)
		}
	case query != "":
		selectors = []string{query}
	default:
		return nil, false, ErrMissingTargets
	}

	targets := []string{}
	for _, sel := range selectors {
		for _, id := range r.expand(sel) {
			if addr, ok := dir.Lookup(id); ok && addr != "" {
				targets = append(targets, addr)
			}
		}
	}

	return targets, status, nil
}

// expand maps one selector to the identifiers it names.
func (r *Resolver) expand(selector string) []string {
	switch {
	case strings.Contains(selector, rowSelector):
		return r.RowIDs(lastSegment(selector))
	case strings.Contains(selector, columnSelector):
		return r.ColumnIDs(lastSegment(selector))
	default:
		return []string{selector}
	}
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// parseBody decodes the nested command body. It may be an object or a JSON
// string holding an object.
func parseBody(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing %q field", ErrMalformedPayload, FieldPayload)
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPayload, FieldPayload, err)
		}
		raw = []byte(inner)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPayload, FieldPayload, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s is not an object", ErrMalformedPayload, FieldPayload)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: %s has trailing data", ErrMalformedPayload, FieldPayload)
	}
	return body, nil
}

// parseStatus accepts 0, 1, "0" and "1". A missing or null status means off.
func parseStatus(v any) (bool, error) {
	var n float64
	switch s := v.(type) {
	case nil:
		return false, nil
	case json.Number:
		f, err := s.Float64()
		if err != nil {
			return false, fmt.Errorf("%w: '%s'", ErrInvalidStatus, s)
		}
		n = f
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return false, fmt.Errorf("%w: '%s'", ErrInvalidStatus, s)
		}
		n = float64(i)
	default:
		return false, fmt.Errorf("%w: '%v'", ErrInvalidStatus, v)
	}

	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: '%v'", ErrInvalidStatus, v)
	}
}

// Envelope carries the routing fields of a message. They are read leniently
// so a reply can still be routed when the message fails to resolve.
type Envelope struct {
	ResponseTopic string
	CommandID     string
}

// PeekEnvelope extracts response_topic and command_id from payload.
// Missing, mistyped or unparseable fields yield empty strings.
func PeekEnvelope(payload []byte) Envelope {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Envelope{}
	}

	var env Envelope
	_ = json.Unmarshal(raw[FieldResponseTopic], &env.ResponseTopic) //nolint:errcheck // Non-string leaves it empty
	_ = json.Unmarshal(raw[FieldCommandID], &env.CommandID)         //nolint:errcheck // Non-string leaves it empty
	return env
}
