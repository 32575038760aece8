package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"post-judge/model"
)

var codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?[ \t]*\\r?\\n?(.*?)```")

// asciiSpace is the cut set for comment trimming. Full-width space is not in it.
const asciiSpace = " \t\n\r\v\f"

// stripCodeFence returns the body of the first fenced block, or s unchanged.
func stripCodeFence(s string) string {
	if m := codeFenceRegex.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// ParseVerdict extracts scores and comment from a provider's text reply.
// Undecodable JSON wraps ErrMalformedResponse; every contract violation
// wraps ErrInvalidShape.
func ParseVerdict(text string) (model.Scores, string, error) {
	var scores model.Scores

	dec := json.NewDecoder(strings.NewReader(stripCodeFence(text)))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return scores, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return scores, "", fmt.Errorf("%w: trailing data after object", ErrMalformedResponse)
	}
	if raw == nil {
		return scores, "", fmt.Errorf("%w: expected object", ErrInvalidShape)
	}

	for key := range raw {
		if key == "comment" {
			continue
		}
		if !isScoreKey(key) {
			return scores, "", fmt.Errorf("%w: unexpected key %q", ErrInvalidShape, key)
		}
	}

	for _, key := range model.ScoreKeys {
		v, ok := raw[key]
		if !ok {
			return scores, "", fmt.Errorf("%w: missing key %q", ErrInvalidShape, key)
		}
		n, err := coerceScore(v)
		if err != nil {
			return scores, "", fmt.Errorf("%w: %s: %v", ErrInvalidShape, key, err)
		}
		if n < model.MinItemScore || n > model.MaxItemScore {
			return scores, "", fmt.Errorf("%w: %s=%d out of range", ErrInvalidShape, key, n)
		}
		scores.Set(key, n)
	}

	comment, ok := raw["comment"].(string)
	if !ok {
		return scores, "", fmt.Errorf("%w: comment missing or not a string", ErrInvalidShape)
	}
	comment = strings.Trim(comment, asciiSpace)
	if comment == "" {
		return scores, "", fmt.Errorf("%w: empty comment", ErrInvalidShape)
	}

	return scores, model.TruncateGraphemes(comment, model.MaxCommentLength), nil
}

func isScoreKey(key string) bool {
	for _, k := range model.ScoreKeys {
		if k == key {
			return true
		}
	}
	return false
}

// coerceScore accepts integers as-is and rounds finite floats and numeric
// strings half-up.
func coerceScore(v any) (int, error) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			if i < math.MinInt32 || i > math.MaxInt32 {
				return 0, fmt.Errorf("value %d too large", i)
			}
			return int(i), nil
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %v", err)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite: %v", f)
	}
	rounded := math.Floor(f + 0.5)
	if rounded < math.MinInt32 || rounded > math.MaxInt32 {
		return 0, fmt.Errorf("value %v too large", f)
	}
	return int(rounded), nil
}
