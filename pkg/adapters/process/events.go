package process

import (
	"bytes"
	"encoding/json"
)

// Event types emitted by the bridge on stdout.
const (
	EventModelInfo = "model_info"
	EventEpochEnd  = "epoch_end"
	EventTrainEnd  = "train_end"
	EventMetrics   = "metrics"
	EventError     = "error"
)

// Event is one protocol line. Lines that are not JSON objects with an
// "event" field are progress output, not events.
type Event struct {
	Type    string `json:"event"`
	Message string `json:"message,omitempty"`

	raw []byte
}

// Decode unmarshals the full event line into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.raw, v)
}

func parseEvent(line []byte) (Event, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) < 2 || trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil || ev.Type == "" {
		return Event{}, false
	}
	ev.raw = append([]byte(nil), trimmed...)
	return ev, true
}

type metricsPayload struct {
	Metrics map[string]float64 `json:"metrics"`
}

type epochPayload struct {
	Epoch   int                `json:"epoch"`
	Metrics map[string]float64 `json:"metrics"`
}
