package judge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post-judge/model"
)

const validVerdict = `{"empathy": 15, "humor": 14, "brevity": 13, "originality": 12, "expression": 11, "comment": "Nice one"}`

func TestParseVerdict(t *testing.T) {
	scores, comment, err := ParseVerdict(validVerdict)
	require.NoError(t, err)

	assert.Equal(t, model.Scores{Empathy: 15, Humor: 14, Brevity: 13, Originality: 12, Expression: 11}, scores)
	assert.Equal(t, "Nice one", comment)
}

func TestParseVerdictCodeFences(t *testing.T) {
	tests := map[string]string{
		"json fence":        "```json\n" + validVerdict + "\n```",
		"bare fence":        "```\n" + validVerdict + "\n```",
		"fence with prose":  "Here you go:\n```json\n" + validVerdict + "\n```\nEnjoy!",
		"surrounding space": "\n\n  " + validVerdict + "  \n",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			scores, _, err := ParseVerdict(text)
			require.NoError(t, err)
			assert.Equal(t, 65, scores.Total())
		})
	}
}

func TestParseVerdictUsesFirstFence(t *testing.T) {
	text := "```json\n" + validVerdict + "\n```\n```json\n{\"other\": 1}\n```"
	_, comment, err := ParseVerdict(text)
	require.NoError(t, err)
	assert.Equal(t, "Nice one", comment)
}

func TestParseVerdictCoercion(t *testing.T) {
	text := `{"empathy": 14.5, "humor": "12", "brevity": " 9.4 ", "originality": 0, "expression": 20.0, "comment": "ok"}`

	scores, _, err := ParseVerdict(text)
	require.NoError(t, err)
	assert.Equal(t, model.Scores{Empathy: 15, Humor: 12, Brevity: 9, Originality: 0, Expression: 20}, scores)
}

func TestParseVerdictInvalidShape(t *testing.T) {
	tests := map[string]string{
		"out of range high": `{"empathy": 21, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"out of range low":  `{"empathy": -1, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"rounds past max":   `{"empathy": 20.5, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"missing key":       `{"humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"extra key":         `{"empathy": 1, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "wit": 3, "comment": "x"}`,
		"non numeric":       `{"empathy": "lots", "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"nan string":        `{"empathy": "NaN", "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"infinity string":   `{"empathy": "Infinity", "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"boolean":           `{"empathy": true, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"null score":        `{"empathy": null, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "x"}`,
		"missing comment":   `{"empathy": 1, "humor": 1, "brevity": 1, "originality": 1, "expression": 1}`,
		"blank comment":     `{"empathy": 1, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": " \t\n"}`,
		"numeric comment":   `{"empathy": 1, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": 5}`,
		"json null":         `null`,
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseVerdict(text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidShape)
			assert.Equal(t, model.ErrorInvalidResponse, Classify(err))
		})
	}
}

func TestParseVerdictMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":       "I think this post is great",
		"truncated":      `{"empathy": 1, "humor"`,
		"array":          `[1, 2, 3]`,
		"trailing data":  validVerdict + ` {"again": true}`,
		"empty":          "",
		"empty in fence": "```json\n```",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseVerdict(text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Equal(t, model.ErrorInvalidResponse, Classify(err))
		})
	}
}

func TestParseVerdictComment(t *testing.T) {
	t.Run("full-width space only is kept", func(t *testing.T) {
		text := `{"empathy": 1, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "　"}`
		_, comment, err := ParseVerdict(text)
		require.NoError(t, err)
		assert.Equal(t, "　", comment)
	})

	t.Run("trimmed and truncated", func(t *testing.T) {
		long := strings.Repeat("あ", 40)
		text := `{"empathy": 1, "humor": 1, "brevity": 1, "originality": 1, "expression": 1, "comment": "  ` + long + `  "}`
		_, comment, err := ParseVerdict(text)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("あ", 30), comment)
	})
}
