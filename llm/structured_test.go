package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Label string   `json:"label" description:"the decision"`
	Score float64  `json:"score"`
	Notes []string `json:"notes,omitempty"`
}

func (v verdict) Validate() error {
	if v.Label == "" {
		return errors.New("label required")
	}
	return nil
}

func (v verdict) JSONSchema() map[string]any { return SchemaOf(v) }

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"plain":  `{"a":1}`,
		"fenced": "Here you go:\n```json\n{\"a\": {\"b\": \"}\"}}\n```\nthanks",
		"prose":  `The answer is {"a":[1,2]} as requested.`,
		"array":  `[{"a":1},{"a":2}]`,
	}
	want := map[string]string{
		"plain":  `{"a":1}`,
		"fenced": `{"a": {"b": "}"}}`,
		"prose":  `{"a":[1,2]}`,
		"array":  `[{"a":1},{"a":2}]`,
	}
	for name, in := range cases {
		got, err := ExtractJSON(in)
		require.NoError(t, err, name)
		assert.Equal(t, want[name], got, name)
	}

	_, err := ExtractJSON("no json here")
	assert.Error(t, err)
	_, err = ExtractJSON(`{"open": true`)
	assert.Error(t, err)
}

func TestParseStructuredValidates(t *testing.T) {
	v, err := ParseStructured[verdict]("```\n{\"label\":\"ok\",\"score\":0.5}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", v.Label)

	_, err = ParseStructured[verdict](`{"score":1}`)
	assert.ErrorContains(t, err, "label required")

	_, err = ParseStructured[verdict](`not json`)
	e, ok := AsLLMError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeJSONParsingError, e.Type)
}

func TestSchemaOf(t *testing.T) {
	s := verdict{}.JSONSchema()
	props := s["properties"].(map[string]any)
	assert.Equal(t, "string", props["label"].(map[string]any)["type"])
	assert.Equal(t, "the decision", props["label"].(map[string]any)["description"])
	assert.Equal(t, "array", props["notes"].(map[string]any)["type"])
	assert.ElementsMatch(t, []string{"label", "score"}, s["required"])
}
