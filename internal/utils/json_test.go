package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalNoEscape_KeepsHTML(t *testing.T) {
	out, err := MarshalNoEscape(map[string]string{"error": "<html>Bad Gateway</html>"})
	require.NoError(t, err)
	assert.Equal(t, `{"error":"<html>Bad Gateway</html>"}`, string(out))
}

func TestQuoteJSON(t *testing.T) {
	tests := []string{"", "Method Not Allowed", "line\nbreak \"quoted\"", "<b>&</b>"}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			var back string
			require.NoError(t, json.Unmarshal(QuoteJSON(s), &back))
			assert.Equal(t, s, back)
		})
	}
}
