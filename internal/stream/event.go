package stream

import (
	"encoding/json"
	"fmt"
)

// Event is one playback notification fanned out to remote monitors.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode renders the event as a single JSON document.
func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return b, nil
}
