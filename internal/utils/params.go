package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseRequiredFloat reads a float query parameter that must be present and finite.
func ParseRequiredFloat(values url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidCoordinate, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidCoordinate, name, raw)
	}
	if err := ValidateCoordinate(v, 0); err != nil {
		return 0, fmt.Errorf("%w: %s is not finite", ErrInvalidCoordinate, name)
	}
	return v, nil
}

// ParseOptionalFloat returns def when the parameter is absent.
func ParseOptionalFloat(values url.Values, name string, def float64) (float64, error) {
	if strings.TrimSpace(values.Get(name)) == "" {
		return def, nil
	}
	return ParseRequiredFloat(values, name)
}

// ParseOptionalInt returns def when the parameter is absent or not a positive integer.
func ParseOptionalInt(values url.Values, name string, def int) int {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
