package calendar

import (
	"context"
	"sync"
	"time"

	"roomcal/internal/dates"
)

// Fetcher loads the week containing ref.
type Fetcher interface {
	Fetch(ctx context.Context, ref time.Time) error
}

// Navigator owns the reference date of the displayed week.
type Navigator struct {
	mu      sync.Mutex
	current time.Time
	fetcher Fetcher
	locale  dates.Locale
}

func NewNavigator(ref time.Time, f Fetcher, locale dates.Locale) *Navigator {
	return &Navigator{current: ref, fetcher: f, locale: locale}
}

// Current returns the reference date.
func (n *Navigator) Current() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Days returns the seven dates of the displayed week.
func (n *Navigator) Days() []time.Time {
	return dates.WeekDates(n.Current())
}

// Header renders the reference's year and month.
func (n *Navigator) Header() string {
	return n.locale.MonthHeader(n.Current())
}

// Prev moves back one week and fetches it.
func (n *Navigator) Prev(ctx context.Context) error {
	return n.shift(ctx, -7)
}

// Next moves forward one week and fetches it.
func (n *Navigator) Next(ctx context.Context) error {
	return n.shift(ctx, 7)
}

func (n *Navigator) shift(ctx context.Context, days int) error {
	n.mu.Lock()
	n.current = n.current.AddDate(0, 0, days)
	ref := n.current
	n.mu.Unlock()

	return n.fetcher.Fetch(ctx, ref)
}
