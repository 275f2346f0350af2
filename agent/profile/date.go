package profile

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without a time-of-day component. Sessions round-trip
// traveller dates through JSON, and a bare date must stay a bare date.
type Date struct {
	year  int
	month time.Month
	day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{year: year, month: month, day: day}
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

func (d Date) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

func (d Date) Equal(other Date) bool {
	return d.year == other.year && d.month == other.month && d.day == other.day
}

func (d Date) Before(other Date) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if d.month != other.month {
		return d.month < other.month
	}
	return d.day < other.day
}

func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*d = Date{}
		return nil
	}
	parsed, ok := ParseDate(text)
	if !ok {
		return fmt.Errorf("invalid date %q", text)
	}
	*d = parsed
	return nil
}

// dateFormats lists every layout payment callbacks and channel payloads have
// been observed to use. Order matters: ISO first, then day-first variants
// before month-first.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"01-02-2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January, 2006",
	"2 Jan, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006.01.02",
	"02.01.2006",
}

// ParseDate parses a calendar date from free-form text, trying ISO-8601
// (including full timestamps) before the known channel formats.
func ParseDate(text string) (Date, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Date{}, false
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return DateOf(t), true
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return DateOf(t), true
		}
	}
	return Date{}, false
}
