package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseInterval parses a poll interval setting. Accepted forms: a bare
// integer ("300") meaning seconds, a Go duration string ("90s", "15m",
// "8h"), and day/week shorthands ("1d", "2w").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("interval is empty")
	}

	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("interval must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}

	if unit := s[len(s)-1]; unit == 'd' || unit == 'w' {
		count, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || count <= 0 {
			return 0, fmt.Errorf("invalid interval '%s'", s)
		}
		if unit == 'd' {
			return time.Duration(count) * 24 * time.Hour, nil
		}
		return time.Duration(count) * 7 * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval '%s': %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got '%s'", s)
	}
	return d, nil
}
