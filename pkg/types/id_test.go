package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDJSONAcceptsStringAndNumber(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1790000000000000001","b":42}`), &payload))
	require.Equal(t, ID(1790000000000000001), payload.A)
	require.Equal(t, ID(42), payload.B)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"1790000000000000001","b":"42"}`, string(out))
}

func TestParseIDRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-5"} {
		if _, err := ParseID(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	id, err := ParseID(" 17 ")
	require.NoError(t, err)
	require.Equal(t, ID(17), id)
}
