package logger

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	keyTimestamp = "timestamp_micros"
	keySession   = "session_id"
	keyEvent     = "event"
	keyFields    = "fields"
)

// LogEntry is a single record in the event log.
type LogEntry struct {
	TimestampMicros int64
	SessionID       string
	Event           string
	Fields          map[string]interface{}
}

// GetInt returns the named field as an integer, numbers are stored as
// floating point on the wire.
func (le *LogEntry) GetInt(field string) int {
	switch v := le.Fields[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// GetString returns the named field if it's a string.
func (le *LogEntry) GetString(field string) string {
	s, _ := le.Fields[field].(string)
	return s
}

// GetBool returns the named field if it's a boolean.
func (le *LogEntry) GetBool(field string) bool {
	b, _ := le.Fields[field].(bool)
	return b
}

// MarshalJSON encodes the entry as a JSON object.
func (le *LogEntry) MarshalJSON() ([]byte, error) {
	fields := le.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}

	msg, err := structpb.NewStruct(map[string]interface{}{
		keyTimestamp: le.TimestampMicros,
		keySession:   le.SessionID,
		keyEvent:     le.Event,
		keyFields:    fields,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %q event: %w", le.Event, err)
	}

	return protojson.Marshal(msg)
}

// UnmarshalJSON decodes an entry written by MarshalJSON.
func (le *LogEntry) UnmarshalJSON(b []byte) error {
	var msg structpb.Struct
	if err := protojson.Unmarshal(b, &msg); err != nil {
		return err
	}

	raw := msg.AsMap()
	*le = LogEntry{}
	if ts, ok := raw[keyTimestamp].(float64); ok {
		le.TimestampMicros = int64(ts)
	}
	le.SessionID, _ = raw[keySession].(string)
	le.Event, _ = raw[keyEvent].(string)
	le.Fields, _ = raw[keyFields].(map[string]interface{})
	return nil
}
