package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var errBadFrame = errors.New("frame has no event name")

// frame is the wire envelope: {"event": <name>, "data": <payload>}.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	b, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

// decodeFrame peeks the event name without unmarshalling the payload.
func decodeFrame(b []byte) (string, json.RawMessage, error) {
	if !gjson.ValidBytes(b) {
		return "", nil, fmt.Errorf("invalid json frame")
	}
	ev := gjson.GetBytes(b, "event")
	if ev.Type != gjson.String || ev.Str == "" {
		return "", nil, errBadFrame
	}
	data := gjson.GetBytes(b, "data")
	if !data.Exists() {
		return ev.Str, nil, nil
	}
	return ev.Str, json.RawMessage(data.Raw), nil
}
