package calendar

import (
	"context"
	"time"

	"roomcal/internal/dates"
	appLog "roomcal/internal/log"
	"roomcal/internal/model"
	"roomcal/internal/store"
)

// Store is what a Session needs from the reservation store.
type Store interface {
	Fetcher
	Creator
	Init(ctx context.Context, ref time.Time) error
	Snapshot() store.State
}

// Session is one mounted calendar: the navigator, the dialog and the store
// they drive.
type Session struct {
	store  Store
	nav    *Navigator
	dialog *Dialog
	locale dates.Locale
	log    appLog.Logger
}

func NewSession(st Store, ref time.Time, locale dates.Locale, log appLog.Logger) *Session {
	if log == nil {
		log = appLog.Default()
	}
	return &Session{
		store:  st,
		nav:    NewNavigator(ref, st, locale),
		dialog: &Dialog{},
		locale: locale,
		log:    log,
	}
}

func (s *Session) Navigator() *Navigator { return s.nav }
func (s *Session) State() store.State    { return s.store.Snapshot() }
func (s *Session) Dialog() *Dialog       { return s.dialog }

// Prev and Next leave an open dialog as it is.
func (s *Session) Prev(ctx context.Context) error { return s.nav.Prev(ctx) }
func (s *Session) Next(ctx context.Context) error { return s.nav.Next(ctx) }

// Refresh re-fetches the displayed week.
func (s *Session) Refresh(ctx context.Context) error {
	return s.store.Fetch(ctx, s.nav.Current())
}

// Retry reloads the displayed week after a failure. A failed connectivity
// probe is run again before fetching.
func (s *Session) Retry(ctx context.Context) error {
	if s.store.Snapshot().ErrSource == store.SourceProbe {
		return s.store.Init(ctx, s.nav.Current())
	}
	return s.Refresh(ctx)
}

// Select opens the dialog for slot if it is an open slot of the displayed
// week. It reports whether the dialog was opened.
func (s *Session) Select(slot model.Slot) bool {
	if slot.Hour < dates.FirstHour || slot.Hour > dates.LastHour {
		return false
	}
	if !dates.InWeek(slot.Date, s.nav.Current()) {
		return false
	}
	st := s.store.Snapshot()
	if st.Loading || st.BlocksGrid() {
		return false
	}
	if _, reserved := st.Lookup(slot.Date, slot.Hour); reserved {
		return false
	}
	s.dialog.Open(slot)
	s.log.Debug("slot selected", "date", slot.Key(), "hour", slot.Hour)
	return true
}

// Confirm submits the dialog.
func (s *Session) Confirm(ctx context.Context) bool {
	return s.dialog.Confirm(ctx, s.store)
}

// Page is the render model of the whole calendar view.
type Page struct {
	Header  string
	WeekKey string

	Loading bool
	// Err is shown in place of the grid when ErrBlocksGrid is set and above
	// it otherwise.
	Err           string
	ErrBlocksGrid bool

	// Grid is nil while loading or when an error blocks it.
	Grid   *Grid
	Dialog *DialogView
}

// DialogView is the render model of an open dialog.
type DialogView struct {
	DateKey    string
	Hour       int
	DateLabel  string
	RangeLabel string
	Title      string
	Content    string
	MaxContent int
	CanConfirm bool
}

// Ready reports whether the page has finished loading, with or without an
// error.
func (p Page) Ready() bool { return !p.Loading }

// Page builds the current page model from the navigator, dialog and a store
// snapshot.
func (s *Session) Page() Page {
	ref := s.nav.Current()
	st := s.store.Snapshot()

	p := Page{
		Header:        s.nav.Header(),
		WeekKey:       dates.DateKey(dates.WeekStart(ref)),
		Loading:       st.Loading,
		Err:           st.Err,
		ErrBlocksGrid: st.BlocksGrid(),
	}

	// An absent slot only means "free" for the week just fetched.
	if !p.Loading && !p.ErrBlocksGrid && !st.Week.Equal(dates.WeekStart(ref)) {
		p.Loading = true
	}

	if !p.Loading && !p.ErrBlocksGrid {
		g := BuildGrid(s.nav.Days(), st, s.locale)
		p.Grid = &g
	}

	if slot, ok := s.dialog.Slot(); ok {
		p.Dialog = &DialogView{
			DateKey:    slot.Key(),
			Hour:       slot.Hour,
			DateLabel:  s.locale.DisplayDate(slot.Date),
			RangeLabel: dates.FormatHourRange(slot.Hour),
			Title:      s.dialog.Title(),
			Content:    s.dialog.Content(),
			MaxContent: model.MaxContentLen,
			CanConfirm: s.dialog.CanConfirm(),
		}
	}
	return p
}
