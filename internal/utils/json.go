package utils

import (
	"bytes"
	"encoding/json"
)

// MarshalNoEscape marshals JSON without HTML escaping.
// Upstream error pages are often HTML; keeping '<' literal keeps the
// relayed message readable.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// QuoteJSON returns s as a JSON string literal without HTML escaping.
func QuoteJSON(s string) []byte {
	out, err := MarshalNoEscape(s)
	if err != nil {
		// strings always marshal; invalid UTF-8 is replaced by the encoder.
		return []byte(`""`)
	}
	return out
}
