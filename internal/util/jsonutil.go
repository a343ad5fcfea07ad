package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeJSONObject decodes JSON into a map[string]any and rejects anything
// that is not a single JSON object.
//
// We enable json.Decoder.UseNumber() so numbers are preserved as json.Number.
// The engineer config is forwarded to the backend verbatim; this only proves
// the text is a well-formed object before we spend a network round trip.
func DecodeJSONObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	// Ensure there is no trailing non-whitespace content.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("unexpected trailing JSON content")
		}
		return nil, fmt.Errorf("unexpected trailing JSON content: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("config must be a JSON object, got null")
	}
	return m, nil
}
