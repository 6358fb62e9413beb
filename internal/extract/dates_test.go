package extract

import (
	"testing"
	"time"
)

func TestExtractSaleDates(t *testing.T) {
	now := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		text      string
		wantStart string
		wantEnd   string
		wantOK    bool
	}{
		{name: "dotted range", text: "기간 2025.01.01 ~ 2025.01.10", wantStart: "2025-01-01", wantEnd: "2025-01-10", wantOK: true},
		{name: "slash range with weekday", text: "2025/1/1(수) - 2025/1/10(금)", wantStart: "2025-01-01", wantEnd: "2025-01-10", wantOK: true},
		{name: "dash range", text: "2025-01-01 ~ 2025-01-10", wantStart: "2025-01-01", wantEnd: "2025-01-10", wantOK: true},
		{name: "two digit years", text: "25.03.01 부터 25.03.31", wantStart: "2025-03-01", wantEnd: "2025-03-31", wantOK: true},
		{name: "until label", text: "Sale until 2025-02-14 only", wantEnd: "2025-02-14", wantOK: true},
		{name: "deadline korean", text: "마감: 2025.12.24", wantEnd: "2025-12-24", wantOK: true},
		{name: "kkaji suffix", text: "2025.12.31(수)까지 특가", wantEnd: "2025-12-31", wantOK: true},
		{name: "discount month day", text: "할인기간 12/1 ~ 12/15", wantStart: "2025-12-01", wantEnd: "2025-12-15", wantOK: true},
		{name: "discount korean month day rollover", text: "세일 기간 12월 28일 ~ 1월 3일", wantStart: "2025-12-28", wantEnd: "2026-01-03", wantOK: true},
		{name: "range beats until", text: "마감 2025.02.01 / 2025.01.01 ~ 2025.01.10", wantStart: "2025-01-01", wantEnd: "2025-01-10", wantOK: true},
		{name: "invalid calendar date skipped", text: "2025.02.30 ~ 2025.03.40 마감 2025.03.05", wantEnd: "2025-03-05", wantOK: true},
		{name: "inverted range skipped", text: "2025.03.10 ~ 2025.03.01", wantOK: false},
		{name: "no date", text: "무료배송 50,000원", wantOK: false},
		{name: "ends label", text: "Offer ends: 2025.01.20", wantEnd: "2025-01-20", wantOK: true},
		{name: "ends inside a word is not a deadline", text: "weekend 2025.01.20", wantOK: false},
		{name: "until inside a word is not a deadline", text: "untilled 2025.01.20", wantOK: false},
	}

	for _, tc := range cases {
		got, ok := ExtractSaleDates(tc.text, now)
		if ok != tc.wantOK {
			t.Fatalf("%s: expected ok=%v got %v (%+v)", tc.name, tc.wantOK, ok, got)
		}
		if !ok {
			continue
		}
		if got.Start.String() != tc.wantStart {
			t.Fatalf("%s: expected start %q got %q", tc.name, tc.wantStart, got.Start.String())
		}
		if got.End.String() != tc.wantEnd {
			t.Fatalf("%s: expected end %q got %q", tc.name, tc.wantEnd, got.End.String())
		}
	}
}
