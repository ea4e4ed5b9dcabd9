package model

import (
	"bytes"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// RawDocument is the decoded body of one per-day results query.
type RawDocument struct {
	Events   []Event   `json:"events"`
	Sections []Section `json:"sections"`
}

// Section groups events; Events holds 1-based indices into RawDocument.Events.
type Section struct {
	Name   string     `json:"name"`
	Events []EventRef `json:"events"`
}

// EventRef is a 1-based event index. Upstream encodes it as a number or a numeric string.
type EventRef int

// UnmarshalJSON accepts 7, 7.0 and "7".
func (r *EventRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	if n, err := strconv.Atoi(string(data)); err == nil {
		*r = EventRef(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("event reference is not a number: %s", data)
	}
	*r = EventRef(int(f))
	return nil
}

// DecodeDocument decodes a results document body.
func DecodeDocument(body []byte) (*RawDocument, error) {
	var doc RawDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Batch is the normalized event set derived from one document, persisted as one unit.
type Batch struct {
	// Source is the query path the document was fetched with.
	Source string
	Events []Event
}

// Len returns the number of events in the batch.
func (b Batch) Len() int {
	return len(b.Events)
}
