package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"roomcal/internal/booking"
	"roomcal/internal/dates"
	appLog "roomcal/internal/log"
	"roomcal/internal/model"
)

var (
	// ErrStale is returned by Fetch when a newer fetch was issued before this
	// one completed; its response was discarded.
	ErrStale = errors.New("fetch superseded by a newer request")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Client is the booking service as seen by the store.
type Client interface {
	Bookings(ctx context.Context, start, end time.Time) ([]model.Reservation, error)
	Create(ctx context.Context, r model.Reservation) error
	Health(ctx context.Context) error
}

// Store caches the reservations of the displayed week and binds them to the
// booking service. All state lives in one goroutine; operations do their
// network I/O outside it and hand the result back as a closure.
type Store struct {
	client      Client
	log         appLog.Logger
	healthCheck bool

	ops       chan func(*state)
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	st state
}

type state struct {
	week    time.Time
	cache   Cache
	loading bool
	err     string
	errSrc  ErrSource

	// gen advances with every successful create.
	gen uint64
	// creates that may not be reflected yet in a fetch issued earlier.
	creates []createRecord

	fetchSeq    uint64
	cancelFetch context.CancelFunc
}

type createRecord struct {
	gen uint64
	r   model.Reservation
}

// Option configures a Store.
type Option func(*Store)

// WithLogger injects the logger.
func WithLogger(l appLog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHealthCheck enables the connectivity probe in Init.
func WithHealthCheck(enabled bool) Option {
	return func(s *Store) { s.healthCheck = enabled }
}

// New creates a Store and starts its state goroutine. The store starts in
// the loading state with an empty cache.
func New(client Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		log:    appLog.Default(),
		ops:    make(chan func(*state)),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		st: state{
			cache:   make(Cache),
			loading: true,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op(&s.st)
		case <-s.quit:
			if s.st.cancelFetch != nil {
				s.st.cancelFetch()
			}
			return
		}
	}
}

// do runs fn on the state goroutine and waits for it. It reports false when
// the store is closed.
func (s *Store) do(fn func(*state)) bool {
	finished := make(chan struct{})
	select {
	case s.ops <- func(st *state) {
		fn(st)
		close(finished)
	}:
	case <-s.quit:
		return false
	}
	<-finished
	return true
}

// Close stops the state goroutine and cancels an in-flight fetch.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

// Init runs the connectivity probe (when enabled) and then the first fetch.
// If the probe fails the fetch is skipped and the store shows the error.
func (s *Store) Init(ctx context.Context, ref time.Time) error {
	if s.healthCheck {
		pctx := booking.WithRequestID(ctx, "")
		if err := s.client.Health(pctx); err != nil {
			s.log.Error("booking service unreachable", err, "request_id", booking.RequestID(pctx))
			msg := "cannot connect to the booking service, check the network connection: " + err.Error()
			if !s.do(func(st *state) {
				st.loading = false
				st.err = msg
				st.errSrc = SourceProbe
			}) {
				return ErrClosed
			}
			return err
		}
	}
	return s.Fetch(ctx, ref)
}

// Fetch loads the Monday..Sunday week containing ref and replaces the cache
// with it. A failure leaves the previous cache in place and sets the error.
func (s *Store) Fetch(ctx context.Context, ref time.Time) error {
	start, end := dates.WeekRange(ref)
	ctx = booking.WithRequestID(ctx, "")
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var seq, issuedAt uint64
	if !s.do(func(st *state) {
		if st.cancelFetch != nil {
			st.cancelFetch()
		}
		st.fetchSeq++
		seq = st.fetchSeq
		issuedAt = st.gen
		st.cancelFetch = cancel
		st.loading = true
		st.err = ""
		st.errSrc = SourceNone
	}) {
		return ErrClosed
	}

	log := appLog.With(s.log, "request_id", booking.RequestID(ctx), "week", dates.DateKey(start), "seq", seq)
	log.Debug("fetch reservations")

	list, err := s.client.Bookings(fctx, start, end)

	var result error
	if !s.do(func(st *state) {
		if seq != st.fetchSeq {
			log.Debug("discarding stale fetch response", "latest_seq", st.fetchSeq)
			result = ErrStale
			return
		}
		st.cancelFetch = nil
		st.loading = false

		if err != nil {
			log.Error("fetch reservations failed", err)
			st.err = err.Error()
			st.errSrc = SourceFetch
			result = err
			return
		}

		cache := make(Cache)
		for _, r := range list {
			cache.put(r)
		}

		// Creates that completed after this fetch was issued may be missing
		// from its response.
		kept := st.creates[:0]
		for _, c := range st.creates {
			if c.gen <= issuedAt {
				continue
			}
			kept = append(kept, c)
			if d, perr := dates.ParseDateKey(c.r.Date); perr == nil && dates.InWeek(d, start) {
				cache.put(c.r)
			}
		}
		st.creates = kept

		st.cache = cache
		st.week = start
		log.Info("reservations loaded", "count", len(list))
	}) {
		return ErrClosed
	}
	return result
}

// Create books (date, hour). On success the reservation is merged into the
// cache and Create reports true; on failure the error is recorded, the cache
// is left alone and Create reports false.
func (s *Store) Create(ctx context.Context, date time.Time, hour int, title, content string) bool {
	r := model.Reservation{
		Date:    dates.DateKey(date),
		Hour:    hour,
		Title:   title,
		Content: model.TruncateContent(content),
	}
	ctx = booking.WithRequestID(ctx, "")
	log := appLog.With(s.log, "request_id", booking.RequestID(ctx), "date", r.Date, "hour", r.Hour)

	err := s.client.Create(ctx, r)

	ok := false
	s.do(func(st *state) {
		if err != nil {
			log.Error("create reservation failed", err)
			st.err = err.Error()
			st.errSrc = SourceCreate
			return
		}

		st.gen++
		st.creates = append(st.creates, createRecord{gen: st.gen, r: r})
		if st.errSrc == SourceCreate {
			st.err = ""
			st.errSrc = SourceNone
		}
		if !st.week.IsZero() && dates.InWeek(date, st.week) {
			st.cache.put(r)
		} else {
			log.Debug("created reservation is outside the loaded week; not cached")
		}
		ok = true
	})
	return ok
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	var out State
	if !s.do(func(st *state) {
		out = State{
			Week:         st.week,
			Reservations: st.cache.clone(),
			Loading:      st.loading,
			Err:          st.err,
			ErrSource:    st.errSrc,
		}
	}) {
		return State{Err: ErrClosed.Error(), ErrSource: SourceFetch}
	}
	return out
}

// Lookup returns the cached reservation at (date, hour).
func (s *Store) Lookup(date time.Time, hour int) (model.Reservation, bool) {
	var (
		r  model.Reservation
		ok bool
	)
	key := dates.DateKey(date)
	s.do(func(st *state) {
		r, ok = st.cache[key][hour]
	})
	return r, ok
}
