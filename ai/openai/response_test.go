package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "valid json unchanged",
			input:    `{"title":"A","year":2020}`,
			expected: `{"title":"A","year":2020}`,
		},
		{
			name:     "missing opening quote on key",
			input:    `{"title":"A", company":"B"}`,
			expected: `{"title":"A", "company":"B"}`,
		},
		{
			name:     "missing quote on first key",
			input:    `{title":"A"}`,
			expected: `{"title":"A"}`,
		},
		{
			name:     "trailing comma in object",
			input:    `{"title":"A",}`,
			expected: `{"title":"A"}`,
		},
		{
			name:     "trailing comma in array",
			input:    `{"keywords":["a","b", ]}`,
			expected: `{"keywords":["a","b" ]}`,
		},
		{
			name:     "commas inside strings untouched",
			input:    `{"summary":"one, two,}"}`,
			expected: `{"summary":"one, two,}"}`,
		},
		{
			name:     "escaped quote inside string",
			input:    `{"summary":"say \"hi\", ok"}`,
			expected: `{"summary":"say \"hi\", ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repairJSON(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.True(t, json.Valid([]byte(got)))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1}  `))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "héll", truncateText("héllo", 4))
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "any", truncateText("any", 0))
}

func TestBuildMetadataSchema_IsValidJSON(t *testing.T) {
	assert.True(t, json.Valid([]byte(buildMetadataSchema())))
	assert.Contains(t, buildSystemPrompt(buildMetadataSchema()), "annual_report")
}
