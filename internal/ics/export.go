package ics

import (
	"sort"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"roomcal/internal/dates"
	appLog "roomcal/internal/log"
	"roomcal/internal/model"
)

const productID = "-//roomcal//weekly room reservations//EN"

// ExportOptions controls calendar metadata.
type ExportOptions struct {
	// Name is written as X-WR-CALNAME.
	Name string
	// Domain is the UID suffix, e.g. "roomcal.local".
	Domain string
	// Now is used for DTSTAMP; zero means time.Now.
	Now time.Time
}

// Export renders reservations as an iCalendar (RFC 5545) document with one
// one-hour VEVENT per reservation, ordered by date and hour. Records with an
// unparsable date are skipped.
func Export(reservations []model.Reservation, opts ExportOptions) string {
	if opts.Domain == "" {
		opts.Domain = "roomcal.local"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	sorted := make([]model.Reservation, len(reservations))
	copy(sorted, reservations)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Hour < sorted[j].Hour
	})

	for _, r := range sorted {
		day, err := dates.ParseDateKey(r.Date)
		if err != nil {
			appLog.Error("ics export: skipping reservation", err, "date", r.Date, "hour", r.Hour)
			continue
		}
		start := slotStart(day, r.Hour)

		ev := cal.AddEvent(UID(r, opts.Domain))
		ev.SetDtStampTime(opts.Now)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(time.Hour))
		ev.SetSummary(r.Title)
		if r.Content != "" {
			ev.SetDescription(r.Content)
		}
	}

	return cal.Serialize()
}

// slotStart is hour:00 on day's wall clock, also on DST transition days.
func slotStart(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}

// UID is the stable identifier of a reservation's VEVENT. A slot holds at
// most one reservation, so (date, hour) is enough.
func UID(r model.Reservation, domain string) string {
	return r.Date + "T" + strconv.Itoa(r.Hour) + "@" + domain
}
