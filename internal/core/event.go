package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Payload is the untyped bag of data carried by an event occurrence.
type Payload map[string]interface{}

// Event is the envelope used when an occurrence leaves the process.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// NewEvent stamps an envelope with a fresh id and the current time.
func NewEvent(eventType, source string, data Payload) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}
}

// Decode copies payload fields into out, which must be a pointer to a struct
// or map. Field names match case-insensitively and scalar values are
// converted where possible, so a numeric message still decodes into a string.
func Decode(data Payload, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := dec.Decode(map[string]interface{}(data)); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
