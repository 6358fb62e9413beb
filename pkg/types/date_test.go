package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewDateRejectsOverflow(t *testing.T) {
	if _, err := NewDate(2025, 2, 30); err == nil {
		t.Fatal("expected 2025-02-30 to be rejected")
	}
	if _, err := NewDate(2025, 13, 1); err == nil {
		t.Fatal("expected month 13 to be rejected")
	}
	if _, err := NewDate(25, 1, 1); err == nil {
		t.Fatal("expected two-digit year to be rejected")
	}
	d, err := NewDate(2024, 2, 29)
	if err != nil {
		t.Fatalf("leap day should be valid: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("unexpected string %q", d.String())
	}
}

func TestParseDateAcceptsTimestamps(t *testing.T) {
	d, err := ParseDate("2025-01-10T23:59:59Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2025-01-10" {
		t.Fatalf("unexpected day %q", d.String())
	}

	shifted, err := ParseDate("2025-01-10T23:30:00-05:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if shifted.String() != "2025-01-11" {
		t.Fatalf("expected UTC day 2025-01-11, got %q", shifted.String())
	}

	if _, err := ParseDate("10/01/2025"); err == nil {
		t.Fatal("expected non-ISO date to fail")
	}
}

func TestDateOrderingAndRendering(t *testing.T) {
	end, _ := NewDate(2025, 1, 10)
	today := DateOf(time.Date(2025, 1, 11, 8, 0, 0, 0, time.UTC))

	if !end.Before(today) {
		t.Fatal("expected end to be before today")
	}
	if today.Before(end) || end.Before(end) {
		t.Fatal("unexpected ordering")
	}
	if end.EndOfDayISO() != "2025-01-10T23:59:59Z" {
		t.Fatalf("unexpected end of day %q", end.EndOfDayISO())
	}
	if end.StartOfDayISO() != "2025-01-10T00:00:00Z" {
		t.Fatalf("unexpected start of day %q", end.StartOfDayISO())
	}
	if !end.EndOfDay().Equal(time.Date(2025, 1, 10, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("unexpected end of day time %v", end.EndOfDay())
	}
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Day Date `json:"day"`
	}
	if err := json.Unmarshal([]byte(`{"day":"2025-03-04"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"day":"2025-03-04"}` {
		t.Fatalf("unexpected json %s", out)
	}
}
