package gtfs

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOptionalInt parses s as a base-10 integer. Blank or non-numeric
// input yields nil so callers can tell "not provided" apart from zero.
func ParseOptionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Some producers write sequence numbers as "3.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return nil
		}
		n = int(f)
	}
	return &n
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseTimeOfDay converts an H:MM:SS string to seconds since midnight.
// Hours may exceed 23 for trips that run past midnight.
func ParseTimeOfDay(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, false
	}
	return v[0]*3600 + v[1]*60 + v[2], true
}

// FormatTimeLabel renders seconds since midnight as a zero padded HH:MM label.
func FormatTimeLabel(secs int) string {
	return fmt.Sprintf("%02d:%02d", secs/3600, secs%3600/60)
}

// ParseDate parses an 8-digit YYYYMMDD literal.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return 0, fmt.Errorf("date %q: want YYYYMMDD", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("date %q: %w", s, err)
	}
	m, d := n/100%100, n%100
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, fmt.Errorf("date %q: out of range", s)
	}
	return Date(n), nil
}

func flag(s string) bool {
	return s == "1"
}
