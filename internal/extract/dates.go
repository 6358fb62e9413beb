package extract

import (
	"regexp"
	"strconv"
	"time"

	"github.com/angelmondragon/pricesync-backend/pkg/types"
)

// SaleDates is the sale window read from page text. Zero dates mean absent.
type SaleDates struct {
	Start types.Date
	End   types.Date
}

const (
	fullDate   = `(\d{4}|\d{2})\s*[./-]\s*(\d{1,2})\s*[./-]\s*(\d{1,2})\.?`
	weekday    = `(?:\s*\([^)]{1,8}\))?`
	connector  = `\s*(?:~|-|–|—|부터)\s*`
	monthDay   = `(\d{1,2})\s*(?:[./-]|월)\s*(\d{1,2})\s*일?`
	untilLabel = `(?i)(?:\b(?:until|deadline|ends?)\b|마감|종료일?)\s*:?\s*`
	saleLabel  = `(?i)(?:할인|세일|특가|이벤트|sale|discount|promotion)\s*(?:기간|period)\s*:?\s*`
)

var (
	dateRangeRe     = regexp.MustCompile(fullDate + weekday + connector + fullDate)
	untilLabelRe    = regexp.MustCompile(untilLabel + fullDate)
	untilSuffixRe   = regexp.MustCompile(fullDate + weekday + `\s*까지`)
	discountRangeRe = regexp.MustCompile(saleLabel + monthDay + weekday + connector + monthDay)
)

// ExtractSaleDates looks for a sale end date in priority order: an explicit
// full-date range, then a single date after an "until"/deadline label (or
// followed by 까지), then a discount-labelled month/day range whose year is
// taken from now. The first pattern with a valid calendar date wins.
//
// Two-digit years are read as 20YY, so pages from 2100 onward would be
// misdated. That horizon is accepted.
func ExtractSaleDates(text string, now time.Time) (SaleDates, bool) {
	if dates, ok := matchDateRange(text); ok {
		return dates, true
	}
	if end, ok := matchUntil(text); ok {
		return SaleDates{End: end}, true
	}
	if dates, ok := matchDiscountRange(text, now); ok {
		return dates, true
	}
	return SaleDates{}, false
}

func matchDateRange(text string) (SaleDates, bool) {
	for _, m := range dateRangeRe.FindAllStringSubmatch(text, -1) {
		start, err := dateFromParts(m[1], m[2], m[3])
		if err != nil {
			continue
		}
		end, err := dateFromParts(m[4], m[5], m[6])
		if err != nil || end.Before(start) {
			continue
		}
		return SaleDates{Start: start, End: end}, true
	}
	return SaleDates{}, false
}

func matchUntil(text string) (types.Date, bool) {
	for _, re := range []*regexp.Regexp{untilLabelRe, untilSuffixRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if end, err := dateFromParts(m[1], m[2], m[3]); err == nil {
				return end, true
			}
		}
	}
	return types.Date{}, false
}

func matchDiscountRange(text string, now time.Time) (SaleDates, bool) {
	year := now.UTC().Year()
	for _, m := range discountRangeRe.FindAllStringSubmatch(text, -1) {
		startMonth, _ := strconv.Atoi(m[1])
		startDay, _ := strconv.Atoi(m[2])
		endMonth, _ := strconv.Atoi(m[3])
		endDay, _ := strconv.Atoi(m[4])

		endYear := year
		if endMonth < startMonth {
			endYear++
		}
		start, err := types.NewDate(year, startMonth, startDay)
		if err != nil {
			continue
		}
		end, err := types.NewDate(endYear, endMonth, endDay)
		if err != nil || end.Before(start) {
			continue
		}
		return SaleDates{Start: start, End: end}, true
	}
	return SaleDates{}, false
}

func dateFromParts(y, m, d string) (types.Date, error) {
	year, err := strconv.Atoi(y)
	if err != nil {
		return types.Date{}, err
	}
	if len(y) == 2 {
		year += 2000
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return types.Date{}, err
	}
	day, err := strconv.Atoi(d)
	if err != nil {
		return types.Date{}, err
	}
	return types.NewDate(year, month, day)
}
