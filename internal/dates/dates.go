package dates

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "roomcal/internal/log"
)

// Hour domain of the weekly grid: 9:00 through the 19:00 slot (11 slots).
const (
	FirstHour = 9
	LastHour  = 19
)

// KeyLayout is the date layout shared with the booking API.
const KeyLayout = "20060102"

// InvalidDate is returned by the display formatters for non-representable dates.
const InvalidDate = "Invalid Date"

// Hours returns the grid hours in ascending order.
func Hours() []int {
	out := make([]int, 0, LastHour-FirstHour+1)
	for h := FirstHour; h <= LastHour; h++ {
		out = append(out, h)
	}
	return out
}

// WeekStart returns local midnight of the Monday on or before ref, in ref's
// location.
func WeekStart(ref time.Time) time.Time {
	y, m, d := ref.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// WeekRange returns the inclusive Monday..Sunday dates of ref's week.
func WeekRange(ref time.Time) (start, end time.Time) {
	start = WeekStart(ref)
	return start, start.AddDate(0, 0, 6)
}

// WeekDates returns the seven consecutive dates of ref's week, Monday first.
func WeekDates(ref time.Time) []time.Time {
	start := WeekStart(ref)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   7,
		Dtstart: start,
	})
	if err != nil {
		// Constant options; unreachable in practice.
		out := make([]time.Time, 7)
		for i := range out {
			out[i] = start.AddDate(0, 0, i)
		}
		return out
	}
	return r.All()
}

// InWeek reports whether t falls on one of the days of ref's week.
func InWeek(t, ref time.Time) bool {
	return WeekStart(t).Equal(WeekStart(ref))
}

// FormatHourLabel renders an hour as "HH:00".
func FormatHourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// FormatHourRange renders "HH:00 - HH+1:00".
func FormatHourRange(hour int) string {
	return FormatHourLabel(hour) + " - " + FormatHourLabel(hour+1)
}

// FormatDisplayDate renders t with the default (ja) locale, e.g. "8月5日(月)".
func FormatDisplayDate(t time.Time) string {
	return LocaleJA.DisplayDate(t)
}

// FormatMonthHeader renders the year and month of t with the default locale.
func FormatMonthHeader(t time.Time) string {
	return LocaleJA.MonthHeader(t)
}

// DateKey formats t as YYYYMMDD.
func DateKey(t time.Time) string {
	return t.Format(KeyLayout)
}

// ParseDateKey parses a YYYYMMDD key as local midnight.
func ParseDateKey(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date key")
	}
	t, err := time.ParseInLocation(KeyLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", s, err)
	}
	return t, nil
}

func invalid(t time.Time) bool {
	if t.IsZero() {
		appLog.Error("invalid date", errors.New("zero time"), "date", t.String())
		return true
	}
	return false
}
