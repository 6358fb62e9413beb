package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. Its String form is always a zero-padded
// YYYY-MM-DD, so lexicographic and chronological order agree.
type Date struct {
	t time.Time
}

// NewDate validates the calendar triple. Out-of-range components are rejected
// instead of normalized (2025-02-30 is an error, not March 2nd).
func NewDate(year, month, day int) (Date, error) {
	if year < 1000 || year > 9999 {
		return Date{}, fmt.Errorf("year %d out of range", year)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return Date{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return Date{t: t}, nil
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or any RFC3339 timestamp. Timestamps are
// reduced to their UTC day.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	if len(value) == len(DateLayout) {
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
		}
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d.t.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.String() < other.String()
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return d.t
}

// EndOfDay returns the last whole second of the day in UTC.
func (d Date) EndOfDay() time.Time {
	return d.t.Add(24*time.Hour - time.Second)
}

// EndOfDayISO renders the day as YYYY-MM-DDT23:59:59Z.
func (d Date) EndOfDayISO() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout) + "T23:59:59Z"
}

// StartOfDayISO renders the day as YYYY-MM-DDT00:00:00Z.
func (d Date) StartOfDayISO() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout) + "T00:00:00Z"
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
