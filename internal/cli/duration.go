package cli

import (
	"fmt"
	"time"
)

// ParseDuration parses "30d", "2w", "6m", "1y" and anything time.ParseDuration
// accepts.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	var day = 24 * time.Hour
	var mult time.Duration
	switch unit {
	case 'd':
		mult = day
	case 'w':
		mult = 7 * day
	case 'm':
		mult = 30 * day
	case 'y':
		mult = 365 * day
	default:
		return time.ParseDuration(s)
	}

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil || value < 0 {
		return 0, fmt.Errorf("invalid duration value: %s", valueStr)
	}
	return time.Duration(value) * mult, nil
}
