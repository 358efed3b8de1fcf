package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"roomcal/internal/model"
)

func TestExport(t *testing.T) {
	reservations := []model.Reservation{
		{Date: "20240806", Hour: 14, Title: "Sync", Content: "abcdef"},
		{Date: "20240805", Hour: 9, Title: "Meeting", Content: "Team"},
		{Date: "bad", Hour: 9, Title: "Broken"},
	}

	out := Export(reservations, ExportOptions{
		Name: "Room A",
		Now:  time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	})

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}

	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	first := events[0]
	if got := first.GetProperty(ical.ComponentPropertySummary).Value; got != "Meeting" {
		t.Errorf("first SUMMARY = %q, want Meeting", got)
	}
	if got := first.GetProperty(ical.ComponentPropertyUniqueId).Value; got != "20240805T9@roomcal.local" {
		t.Errorf("first UID = %q", got)
	}

	start, err := first.GetStartAt()
	if err != nil {
		t.Fatalf("GetStartAt: %v", err)
	}
	want := time.Date(2024, 8, 5, 9, 0, 0, 0, time.Local)
	if !start.Equal(want) {
		t.Errorf("DTSTART = %v, want %v", start, want)
	}
	end, err := first.GetEndAt()
	if err != nil {
		t.Fatalf("GetEndAt: %v", err)
	}
	if end.Sub(start) != time.Hour {
		t.Errorf("duration = %v, want 1h", end.Sub(start))
	}

	if got := events[1].GetProperty(ical.ComponentPropertyDescription).Value; got != "abcdef" {
		t.Errorf("second DESCRIPTION = %q", got)
	}
	if !strings.Contains(out, "X-WR-CALNAME:Room A") {
		t.Error("calendar name missing")
	}
}

func TestExportEmpty(t *testing.T) {
	out := Export(nil, ExportOptions{})
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSlotStartAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		day  time.Time
	}{
		{name: "spring forward", day: time.Date(2024, 3, 10, 0, 0, 0, 0, ny)},
		{name: "fall back", day: time.Date(2024, 11, 3, 0, 0, 0, 0, ny)},
		{name: "plain day", day: time.Date(2024, 8, 5, 0, 0, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, hour := range []int{9, 19} {
				got := slotStart(tt.day, hour)
				if got.Hour() != hour || got.Minute() != 0 || got.Day() != tt.day.Day() {
					t.Errorf("slotStart(%s, %d) = %s", tt.day.Format("2006-01-02"), hour, got)
				}
			}
		})
	}
}
