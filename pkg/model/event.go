// Package model defines the upstream results document and the normalized events derived from it.
package model

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// JSON field names shared with the upstream document and the persisted payload.
const (
	FieldName        = "name"
	FieldStartTime   = "startTime"
	FieldSectionName = "section_name"
)

// Key is the natural uniqueness key of a persisted event.
type Key struct {
	Name      string
	StartTime int64
}

// Event is one upstream event. Name and StartTime are lifted out of the raw
// object; every other attribute is kept verbatim in Attrs. Events are values:
// the Attrs map is never modified after decoding.
type Event struct {
	Name        string
	StartTime   int64
	SectionName string
	Attrs       map[string]json.RawMessage
}

// Key returns the uniqueness key of the event.
func (e Event) Key() Key {
	return Key{Name: e.Name, StartTime: e.StartTime}
}

// Start returns StartTime as a UTC time.
func (e Event) Start() time.Time {
	return time.Unix(e.StartTime, 0).UTC()
}

// WithSection returns a copy of e carrying the given section name.
func (e Event) WithSection(name string) Event {
	e.SectionName = name
	return e
}

// UnmarshalJSON decodes an upstream event object.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("event must be a JSON object")
	}

	var out Event
	if v, ok := raw[FieldName]; ok {
		if err := json.Unmarshal(v, &out.Name); err != nil {
			return fmt.Errorf("event %s: %w", FieldName, err)
		}
		delete(raw, FieldName)
	}
	if v, ok := raw[FieldStartTime]; ok {
		ts, err := parseUnix(v)
		if err != nil {
			return fmt.Errorf("event %s: %w", FieldStartTime, err)
		}
		out.StartTime = ts
		delete(raw, FieldStartTime)
	}
	if v, ok := raw[FieldSectionName]; ok {
		if err := json.Unmarshal(v, &out.SectionName); err != nil {
			return fmt.Errorf("event %s: %w", FieldSectionName, err)
		}
		delete(raw, FieldSectionName)
	}
	out.Attrs = raw

	*e = out
	return nil
}

// MarshalJSON encodes the event back into a single flat object.
// section_name is omitted when empty.
func (e Event) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Attrs)+3)
	for k, v := range e.Attrs {
		obj[k] = v
	}
	obj[FieldName] = e.Name
	obj[FieldStartTime] = e.StartTime
	if e.SectionName != "" {
		obj[FieldSectionName] = e.SectionName
	}
	return json.Marshal(obj)
}

// parseUnix accepts integer, float and numeric-string timestamps.
func parseUnix(v json.RawMessage) (int64, error) {
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
		v = []byte(s)
	}
	if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, fmt.Errorf("not a unix timestamp: %s", v)
	}
	return int64(f), nil
}
