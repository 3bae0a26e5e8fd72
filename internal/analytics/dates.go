package analytics

import (
	"strings"
	"time"
)

// InvalidDate is rendered in place of dates that cannot be parsed.
const InvalidDate = "Invalid date"

// DateLayout is the canonical calendar-day format.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"2.1.2006",
}

// ParseDate parses a calendar day in any accepted layout and truncates it to
// midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a raw date as YYYY-MM-DD, or InvalidDate.
func FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return InvalidDate
	}
	return t.Format(DateLayout)
}

// FormatDay renders a record's date.
func FormatDay(d DailyRecord) string {
	if !d.ValidDate {
		return InvalidDate
	}
	return d.Date.Format(DateLayout)
}
