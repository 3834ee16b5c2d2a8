// Package tstamp handles Slack message timestamps. Slack encodes them as
// decimal strings of epoch seconds with microsecond fractions
// (e.g. "1712345678.000200") and uses them both as instants and as
// per-channel message identifiers, so ordering must be exact: comparisons
// go through decimal arithmetic, never float64.
package tstamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Parse converts a Slack timestamp string into a UTC instant.
func Parse(ts string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(ts, ".")

	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slack timestamp %q: %w", ts, err)
	}

	var micros int64
	if fracPart != "" {
		// Normalize the fraction to exactly six digits.
		if len(fracPart) > 6 {
			fracPart = fracPart[:6]
		}
		for len(fracPart) < 6 {
			fracPart += "0"
		}
		micros, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid slack timestamp %q: %w", ts, err)
		}
	}

	return time.Unix(sec, micros*int64(time.Microsecond)).UTC(), nil
}

// FromTime converts an instant back into the Slack wire encoding.
func FromTime(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// Compare orders two Slack timestamps numerically. It returns -1, 0 or +1.
// Malformed inputs are treated as the zero timestamp, which sorts first;
// callers are expected to have filtered malformed data at the parse boundary.
func Compare(a, b string) int {
	da, err := decimal.NewFromString(a)
	if err != nil {
		da = decimal.Zero
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		db = decimal.Zero
	}
	return da.Cmp(db)
}

// Less reports whether a is strictly older than b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}
