package dates

import (
	"fmt"
	"strings"
	"time"
)

// Locale selects the language of display labels.
type Locale string

const (
	LocaleJA Locale = "ja"
	LocaleEN Locale = "en"
)

var jaWeekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// ParseLocale maps a config value to a Locale; unknown values fall back to ja.
func ParseLocale(s string) Locale {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "en-us", "en_us":
		return LocaleEN
	default:
		return LocaleJA
	}
}

// DisplayDate renders a calendar date with its weekday.
func (l Locale) DisplayDate(t time.Time) string {
	if invalid(t) {
		return InvalidDate
	}
	switch l {
	case LocaleEN:
		return t.Format("Mon, Jan 2")
	default:
		return fmt.Sprintf("%d月%d日(%s)", int(t.Month()), t.Day(), jaWeekdays[t.Weekday()])
	}
}

// MonthHeader renders the year and month of t.
func (l Locale) MonthHeader(t time.Time) string {
	if invalid(t) {
		return InvalidDate
	}
	switch l {
	case LocaleEN:
		return t.Format("January 2006")
	default:
		return fmt.Sprintf("%d年%d月", t.Year(), int(t.Month()))
	}
}
