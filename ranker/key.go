package ranker

import (
	"fmt"
	"strconv"
	"strings"
)

const maxTenths = 1000

// ScoreKey encodes a scored post so that ascending string order is
// descending average, then ascending createdAt, then ascending id.
func ScoreKey(avgTenths int, createdAt int64, id string) string {
	return fmt.Sprintf("%04d#%010d#%s", maxTenths-avgTenths, createdAt, id)
}

// ParsedKey is a decoded score key.
type ParsedKey struct {
	AverageTenths int
	CreatedAt     int64
	ID            string
}

// Average returns the average score with one decimal.
func (k ParsedKey) Average() float64 {
	return float64(k.AverageTenths) / 10
}

// ParseScoreKey decodes a key produced by ScoreKey.
func ParseScoreKey(key string) (ParsedKey, error) {
	parts := strings.SplitN(key, "#", 3)
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 10 || parts[2] == "" {
		return ParsedKey{}, fmt.Errorf("malformed score key %q", key)
	}
	inv, err := strconv.Atoi(parts[0])
	if err != nil || inv < 0 || inv > maxTenths {
		return ParsedKey{}, fmt.Errorf("malformed score in key %q", key)
	}
	createdAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ParsedKey{}, fmt.Errorf("malformed timestamp in key %q", key)
	}
	return ParsedKey{AverageTenths: maxTenths - inv, CreatedAt: createdAt, ID: parts[2]}, nil
}
