package gtfs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var cityPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizeCity trims and lower-cases a city id and rejects anything that
// could escape the search roots.
func NormalizeCity(city string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(city))
	if !cityPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCity, city)
	}
	return normalized, nil
}

// CanonicalID returns the comparison form of an identifier: surrounding
// whitespace is dropped and a decimal with no fractional part is rendered
// as an integer, so "12", " 12 " and "12.0" all compare equal.
func CanonicalID(id string) string {
	trimmed := strings.TrimSpace(id)
	if !strings.Contains(trimmed, ".") {
		return trimmed
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return trimmed
	}
	if f != math.Trunc(f) || math.Abs(f) >= 1e15 {
		return trimmed
	}
	return strconv.FormatInt(int64(f), 10)
}
