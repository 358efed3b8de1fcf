package store

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"roomcal/internal/booking"
	"roomcal/internal/booking/bookingtest"
	appLog "roomcal/internal/log"
	"roomcal/internal/model"
)

var (
	monday   = time.Date(2024, 8, 5, 0, 0, 0, 0, time.Local)
	tuesday  = monday.AddDate(0, 0, 1)
	nextWeek = monday.AddDate(0, 0, 7)
)

func newTestStore(t *testing.T, c Client, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(appLog.Nop())}, opts...)
	s := New(c, opts...)
	t.Cleanup(s.Close)
	return s
}

func newServiceStore(t *testing.T, opts ...Option) (*Store, *bookingtest.Server) {
	t.Helper()
	srv := bookingtest.New()
	t.Cleanup(srv.Close)
	c := booking.NewClient(srv.URL, booking.WithLogger(appLog.Nop()))
	return newTestStore(t, c, opts...), srv
}

func TestStore_InitialState(t *testing.T) {
	s, _ := newServiceStore(t)
	st := s.Snapshot()
	if !st.Loading {
		t.Error("new store is not loading")
	}
	if st.Count() != 0 || !st.Week.IsZero() {
		t.Errorf("new store cache = %+v, want empty", st)
	}
}

func TestStore_Fetch(t *testing.T) {
	s, srv := newServiceStore(t)
	srv.Add(model.Reservation{Date: "20240805", Hour: 9, Title: "Meeting", Content: "Team"})

	if err := s.Fetch(context.Background(), monday.Add(50*time.Hour)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	st := s.Snapshot()
	if st.Loading {
		t.Error("Loading still true after fetch")
	}
	if st.Err != "" {
		t.Errorf("Err = %q, want none", st.Err)
	}
	if !st.Week.Equal(monday) {
		t.Errorf("Week = %v, want %v", st.Week, monday)
	}
	r, ok := st.Lookup(monday, 9)
	if !ok || r.Title != "Meeting" || r.Content != "Team" {
		t.Errorf("Lookup(monday, 9) = %+v, %v", r, ok)
	}
	if st.Count() != 1 {
		t.Errorf("Count = %d, want 1", st.Count())
	}
}

func TestStore_FetchReplacesCache(t *testing.T) {
	s, srv := newServiceStore(t)
	srv.Add(model.Reservation{Date: "20240805", Hour: 9, Title: "A", Content: "a"})
	srv.Add(model.Reservation{Date: "20240812", Hour: 10, Title: "B", Content: "b"})

	if err := s.Fetch(context.Background(), monday); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := s.Fetch(context.Background(), nextWeek); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	st := s.Snapshot()
	if _, ok := st.Lookup(monday, 9); ok {
		t.Error("previous week still cached after fetching the next one")
	}
	if _, ok := st.Lookup(nextWeek, 10); !ok {
		t.Error("next week reservation missing")
	}
}

func TestStore_FetchFailureKeepsCache(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "http status", status: http.StatusInternalServerError, body: "down", wantMsg: "500"},
		{name: "not json", status: http.StatusOK, body: "<html>", wantMsg: "invalid JSON"},
		{name: "not array", status: http.StatusOK, body: `{"a":1}`, wantMsg: "expected an array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, srv := newServiceStore(t)
			srv.Add(model.Reservation{Date: "20240805", Hour: 9, Title: "Meeting", Content: "Team"})
			if err := s.Fetch(context.Background(), monday); err != nil {
				t.Fatalf("Fetch: %v", err)
			}

			srv.FailFetch(tt.status, tt.body)
			if err := s.Fetch(context.Background(), nextWeek); err == nil {
				t.Fatal("Fetch returned nil error")
			}

			st := s.Snapshot()
			if st.Loading {
				t.Error("Loading still true after failed fetch")
			}
			if !strings.Contains(st.Err, tt.wantMsg) || st.ErrSource != SourceFetch {
				t.Errorf("Err = %q (%v), want %q from fetch", st.Err, st.ErrSource, tt.wantMsg)
			}
			if !st.BlocksGrid() {
				t.Error("fetch error does not block the grid")
			}
			if _, ok := st.Lookup(monday, 9); !ok {
				t.Error("prior cache was dropped on failure")
			}
		})
	}
}

func TestStore_Create(t *testing.T) {
	s, srv := newServiceStore(t)
	srv.Add(model.Reservation{Date: "20240805", Hour: 9, Title: "Meeting", Content: "Team"})
	if err := s.Fetch(context.Background(), monday); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	fetches := srv.Fetches()

	if ok := s.Create(context.Background(), tuesday, 14, "Sync", "abcdef"); !ok {
		t.Fatalf("Create failed: %q", s.Snapshot().Err)
	}

	st := s.Snapshot()
	r, ok := st.Lookup(tuesday, 14)
	if !ok || r.Title != "Sync" || r.Content != "abcdef" {
		t.Errorf("Lookup(tuesday, 14) = %+v, %v", r, ok)
	}
	if st.Count() != 2 {
		t.Errorf("Count = %d, want 2", st.Count())
	}
	if srv.Fetches() != fetches {
		t.Error("Create triggered a refetch")
	}
}

func TestStore_CreateFailure(t *testing.T) {
	s, srv := newServiceStore(t)
	if err := s.Fetch(context.Background(), monday); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	srv.FailCreate(http.StatusInternalServerError, `{"error":"slot taken"}`)
	if ok := s.Create(context.Background(), tuesday, 14, "Sync", "abcdef"); ok {
		t.Fatal("Create reported success")
	}

	st := s.Snapshot()
	if !strings.Contains(st.Err, "slot taken") || st.ErrSource != SourceCreate {
		t.Errorf("Err = %q (%v)", st.Err, st.ErrSource)
	}
	if st.BlocksGrid() {
		t.Error("create error blocks the grid")
	}
	if _, ok := st.Lookup(tuesday, 14); ok {
		t.Error("failed create was cached")
	}

	// A later success clears the create error.
	srv.FailCreate(0, "")
	if ok := s.Create(context.Background(), tuesday, 14, "Sync", "abcdef"); !ok {
		t.Fatal("retry failed")
	}
	if st := s.Snapshot(); st.Err != "" {
		t.Errorf("Err after retry = %q", st.Err)
	}
}

func TestStore_CreateOutsideLoadedWeek(t *testing.T) {
	s, _ := newServiceStore(t)
	if err := s.Fetch(context.Background(), monday); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !s.Create(context.Background(), nextWeek, 10, "Later", "x") {
		t.Fatal("Create failed")
	}
	if _, ok := s.Lookup(nextWeek, 10); ok {
		t.Error("reservation for an unloaded week was cached")
	}
}

func TestStore_InitProbe(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := bookingtest.New()
		base := srv.URL
		srv.Close()

		s := newTestStore(t, booking.NewClient(base, booking.WithLogger(appLog.Nop())), WithHealthCheck(true))
		if err := s.Init(context.Background(), monday); err == nil {
			t.Fatal("Init returned nil error")
		}
		st := s.Snapshot()
		if st.Loading {
			t.Error("Loading still true after failed probe")
		}
		if st.Err == "" || st.ErrSource != SourceProbe || !st.BlocksGrid() {
			t.Errorf("state after failed probe = %+v", st)
		}
	})

	t.Run("unhealthy skips fetch", func(t *testing.T) {
		s, srv := newServiceStore(t, WithHealthCheck(true))
		srv.SetHealth(http.StatusServiceUnavailable)
		if err := s.Init(context.Background(), monday); !errors.Is(err, booking.ErrUnhealthy) {
			t.Fatalf("Init err = %v", err)
		}
		if srv.Fetches() != 0 {
			t.Errorf("fetch ran after failed probe (%d)", srv.Fetches())
		}
	})

	t.Run("healthy", func(t *testing.T) {
		s, srv := newServiceStore(t, WithHealthCheck(true))
		if err := s.Init(context.Background(), monday); err != nil {
			t.Fatalf("Init: %v", err)
		}
		if srv.Fetches() != 1 {
			t.Errorf("Fetches = %d, want 1", srv.Fetches())
		}
	})
}

// gatedClient lets a test decide when each Bookings call returns. It ignores
// cancellation so a superseded response still arrives, as it can over the
// network.
type gatedClient struct {
	mu      sync.Mutex
	started chan string
	release map[string]chan []model.Reservation
	created []model.Reservation
}

func newGatedClient() *gatedClient {
	return &gatedClient{
		started: make(chan string, 4),
		release: make(map[string]chan []model.Reservation),
	}
}

func (g *gatedClient) gate(key string) chan []model.Reservation {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.release[key]
	if !ok {
		ch = make(chan []model.Reservation, 1)
		g.release[key] = ch
	}
	return ch
}

func (g *gatedClient) Bookings(_ context.Context, start, _ time.Time) ([]model.Reservation, error) {
	key := start.Format("20060102")
	ch := g.gate(key)
	g.started <- key
	return <-ch, nil
}

func (g *gatedClient) Create(_ context.Context, r model.Reservation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, r)
	return nil
}

func (g *gatedClient) Health(context.Context) error { return nil }

func TestStore_StaleFetchDiscarded(t *testing.T) {
	g := newGatedClient()
	s := newTestStore(t, g)

	oldDone := make(chan error, 1)
	go func() { oldDone <- s.Fetch(context.Background(), monday) }()
	if got := <-g.started; got != "20240805" {
		t.Fatalf("first fetch started for %s", got)
	}

	newDone := make(chan error, 1)
	go func() { newDone <- s.Fetch(context.Background(), nextWeek) }()
	<-g.started

	g.gate("20240812") <- []model.Reservation{{Date: "20240812", Hour: 11, Title: "New", Content: "n"}}
	if err := <-newDone; err != nil {
		t.Fatalf("newer Fetch: %v", err)
	}

	// The older response resolves last and must not win.
	g.gate("20240805") <- []model.Reservation{{Date: "20240805", Hour: 9, Title: "Old", Content: "o"}}
	if err := <-oldDone; !errors.Is(err, ErrStale) {
		t.Fatalf("older Fetch err = %v, want ErrStale", err)
	}

	st := s.Snapshot()
	if !st.Week.Equal(nextWeek) {
		t.Errorf("Week = %v, want %v", st.Week, nextWeek)
	}
	if _, ok := st.Lookup(monday, 9); ok {
		t.Error("stale response overwrote the cache")
	}
	if _, ok := st.Lookup(nextWeek, 11); !ok {
		t.Error("newer response missing")
	}
	if st.Loading {
		t.Error("Loading still true")
	}
}

func TestStore_CreateDuringFetchSurvives(t *testing.T) {
	g := newGatedClient()
	s := newTestStore(t, g)

	// Load the week once so creates are merged.
	go func() { g.gate("20240805") <- nil }()
	if err := s.Fetch(context.Background(), monday); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	<-g.started

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background(), monday) }()
	<-g.started

	if !s.Create(context.Background(), tuesday, 14, "Sync", "abcdef") {
		t.Fatal("Create failed")
	}

	// The refetch was issued before the create and does not include it.
	g.gate("20240805") <- []model.Reservation{{Date: "20240805", Hour: 9, Title: "Meeting", Content: "Team"}}
	if err := <-done; err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	st := s.Snapshot()
	if _, ok := st.Lookup(tuesday, 14); !ok {
		t.Error("create lost to a concurrent fetch")
	}
	if _, ok := st.Lookup(monday, 9); !ok {
		t.Error("fetched reservation missing")
	}
}

func TestStore_CreateTruncatesContent(t *testing.T) {
	g := newGatedClient()
	s := newTestStore(t, g)
	s.Create(context.Background(), tuesday, 10, "t", "abcdefgh")
	if len(g.created) != 1 || g.created[0].Content != "abcdef" {
		t.Errorf("created = %+v", g.created)
	}
}

func TestStore_Closed(t *testing.T) {
	s := New(newGatedClient(), WithLogger(appLog.Nop()))
	s.Close()
	s.Close()

	if err := s.Fetch(context.Background(), monday); !errors.Is(err, ErrClosed) {
		t.Errorf("Fetch after Close = %v, want ErrClosed", err)
	}
}
