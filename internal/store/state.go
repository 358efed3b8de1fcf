package store

import (
	"sort"
	"time"

	"roomcal/internal/dates"
	"roomcal/internal/model"
)

// ErrSource tells which operation produced State.Err.
type ErrSource int

const (
	SourceNone ErrSource = iota
	SourceProbe
	SourceFetch
	SourceCreate
)

func (e ErrSource) String() string {
	switch e {
	case SourceProbe:
		return "probe"
	case SourceFetch:
		return "fetch"
	case SourceCreate:
		return "create"
	default:
		return "none"
	}
}

// Cache maps a YYYYMMDD date key to the reservations of that day by hour.
type Cache map[string]map[int]model.Reservation

// State is a copy of the store's state at one point in time.
type State struct {
	// Week is the Monday of the week the cache holds; zero before the first
	// successful fetch.
	Week time.Time

	Reservations Cache
	Loading      bool

	// Err is the user-visible error message, "" when there is none.
	Err       string
	ErrSource ErrSource
}

// Lookup returns the reservation at (date, hour), if the cache holds one.
func (s State) Lookup(date time.Time, hour int) (model.Reservation, bool) {
	day, ok := s.Reservations[dates.DateKey(date)]
	if !ok {
		return model.Reservation{}, false
	}
	r, ok := day[hour]
	return r, ok
}

// BlocksGrid reports whether the error should replace the grid. Create
// failures are shown next to the grid instead.
func (s State) BlocksGrid() bool {
	if s.Err == "" {
		return false
	}
	return s.ErrSource == SourceProbe || s.ErrSource == SourceFetch
}

// Count returns the number of cached reservations.
func (s State) Count() int {
	n := 0
	for _, day := range s.Reservations {
		n += len(day)
	}
	return n
}

// List returns the cached reservations ordered by date and hour.
func (s State) List() []model.Reservation {
	out := make([]model.Reservation, 0, s.Count())
	for _, day := range s.Reservations {
		for _, r := range day {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

func (c Cache) put(r model.Reservation) {
	day, ok := c[r.Date]
	if !ok {
		day = make(map[int]model.Reservation)
		c[r.Date] = day
	}
	day[r.Hour] = r
}

func (c Cache) clone() Cache {
	out := make(Cache, len(c))
	for k, day := range c {
		d := make(map[int]model.Reservation, len(day))
		for h, r := range day {
			d[h] = r
		}
		out[k] = d
	}
	return out
}
