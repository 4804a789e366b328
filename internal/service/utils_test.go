package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONValue(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare object",
			raw:  `{"vendor": "LAWSON"}`,
			want: `{"vendor": "LAWSON"}`,
		},
		{
			name: "json code fence",
			raw:  "```json\n{\"vendor\": \"LAWSON\"}\n```",
			want: `{"vendor": "LAWSON"}`,
		},
		{
			name: "plain code fence",
			raw:  "```\n{\"vendor\": \"LAWSON\"}\n```",
			want: `{"vendor": "LAWSON"}`,
		},
		{
			name: "surrounding commentary",
			raw:  "Here is the result:\n{\"vendor\": \"LAWSON\"}\nLet me know if you need more.",
			want: `{"vendor": "LAWSON"}`,
		},
		{
			name: "array value",
			raw:  "```json\n[{\"a\": 1}]\n```",
			want: `[{"a": 1}]`,
		},
		{
			name: "nested braces",
			raw:  `prefix {"outer": {"inner": 1}} suffix`,
			want: `{"outer": {"inner": 1}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractJSONValue(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.True(t, json.Valid([]byte(got)), "extracted value should be valid JSON")
		})
	}
}

func TestExtractJSONValueNoJSON(t *testing.T) {
	// Nothing to recover: the cleaned string comes back for the caller's
	// unmarshal to reject
	got := extractJSONValue("no json here at all")
	require.Equal(t, "no json here at all", got)
	assert.False(t, json.Valid([]byte(got)))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "合計 ¥606", sanitizeUTF8("合計 ¥606"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
}
