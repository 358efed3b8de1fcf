package model

import "time"

// MaxContentLen is the maximum number of characters (runes) a reservation
// note may hold.
const MaxContentLen = 6

// Reservation is a single booked slot. A slot is identified by (Date, Hour);
// there is at most one reservation per slot.
type Reservation struct {
	// Date is the calendar day in YYYYMMDD form.
	Date string `json:"date"`
	// Hour is the starting hour of the one-hour slot.
	Hour int `json:"start_time"`

	Title   string `json:"title"`
	Content string `json:"content"`
}

// Slot is a (date, hour) cell in the weekly grid.
type Slot struct {
	Date time.Time
	Hour int
}

// Key returns the YYYYMMDD key of the slot's date.
func (s Slot) Key() string {
	return s.Date.Format("20060102")
}

// TruncateContent keeps at most MaxContentLen runes of s; the rest is dropped.
func TruncateContent(s string) string {
	r := []rune(s)
	if len(r) <= MaxContentLen {
		return s
	}
	return string(r[:MaxContentLen])
}
