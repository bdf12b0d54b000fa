package sftp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"string 1", "1", true},
		{"string true", "true", true},
		{"string yes", "yes", true},
		{"string on", "on", true},
		{"string mixed case", "TrUe", true},
		{"string padded", "  yes  ", true},
		{"string 0", "0", false},
		{"string no", "no", false},
		{"string off", "off", false},
		{"string empty", "", false},
		{"string other digits", "2", false},
		{"string gibberish", "banana", false},
		{"int nonzero", 7, true},
		{"int negative", -1, true},
		{"int zero", 0, false},
		{"int64 nonzero", int64(1), true},
		{"int64 zero", int64(0), false},
		{"uint nonzero", uint(3), true},
		{"uint8 zero", uint8(0), false},
		{"float nonzero", 0.5, true},
		{"float zero", 0.0, false},
		{"float32 nonzero", float32(2), true},
		{"json number nonzero", json.Number("3"), true},
		{"json number zero", json.Number("0"), false},
		{"json number junk", json.Number("abc"), false},
		{"nil", nil, false},
		{"struct", struct{}{}, false},
		{"slice", []string{"true"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseBool(tc.value))
		})
	}
}
