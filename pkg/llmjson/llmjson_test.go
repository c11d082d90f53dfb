package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no tag", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", "Sure! Here it is: [\"x\", \"y\"] hope it helps", `["x", "y"]`},
		{"brace inside string", `{"t":"a } b","n":2} trailing`, `{"t":"a } b","n":2}`},
		{"escaped quote", `{"t":"say \"hi\" }"}`, `{"t":"say \"hi\" }"}`},
		{"nothing", "no json here", ""},
		{"unbalanced", `{"a":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestDecodeParsed(t *testing.T) {
	res := Decode[[]string]("```json\n[\"graph neural networks\", \"drug discovery\"]\n```")
	require.True(t, res.OK())
	assert.Equal(t, Parsed, res.Status)
	assert.Equal(t, []string{"graph neural networks", "drug discovery"}, res.Value)
}

func TestDecodeTrailingComma(t *testing.T) {
	type payload struct {
		Subject string `json:"subject"`
	}
	res := Decode[payload](`{"subject": "Accepted",}`)
	require.True(t, res.OK())
	assert.Equal(t, "Accepted", res.Value.Subject)
}

func TestDecodeFailed(t *testing.T) {
	res := Decode[[]string]("I cannot answer that.")
	assert.False(t, res.OK())
	assert.Equal(t, ParseFailed, res.Status)
	assert.Error(t, res.Err)
	assert.Equal(t, []string{"fallback"}, res.Or([]string{"fallback"}))
	assert.Equal(t, "parse_failed", res.Status.String())
}

func TestDecodeWrongShape(t *testing.T) {
	res := Decode[[]string](`{"topics": ["a"]}`)
	assert.False(t, res.OK())
	assert.Nil(t, res.Value)
}
