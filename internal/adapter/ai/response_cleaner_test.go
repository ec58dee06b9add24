package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/talentsift/internal/domain"
)

func TestCleanJSONResponse(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", `Sure! Here is the JSON: {"a": 1} Hope that helps.`, `{"a": 1}`},
		{"trailing comma", `{"a": 1, "b": [1, 2,],}`, `{"a": 1, "b": [1, 2]}`},
		{"nested braces", `{"a": {"b": 2}} trailing`, `{"a": {"b": 2}}`},
		{"no object at all", `nothing useful here`, `nothing useful here`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanJSONResponse(tc.in))
		})
	}
}

func TestDecodeLooseIgnoresUnknownFields(t *testing.T) {
	t.Parallel()
	var out struct {
		Name string `json:"name"`
	}
	err := DecodeLoose(`{"name": "Ada", "surprise": 42}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "Ada", out.Name)
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	var out struct {
		Name string `json:"name"`
	}
	err := DecodeStrict(`{"name": "Ada", "surprise": 42}`, &out)
	require.ErrorIs(t, err, domain.ErrParse)
}

func TestDecodeFailsClosedAfterSinglePass(t *testing.T) {
	t.Parallel()
	var out map[string]any
	// Still broken after one sanitize pass; no second attempt is made.
	err := DecodeLoose(`{"a": "unterminated`, &out)
	require.ErrorIs(t, err, domain.ErrParse)
}
