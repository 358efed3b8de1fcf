package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roomcal/internal/calendar"
	"roomcal/internal/config"
	"roomcal/internal/dates"
	"roomcal/internal/ics"
	appLog "roomcal/internal/log"
	"roomcal/internal/model"
	"roomcal/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server serves the calendar UI for one Session plus a few JSON/ICS
// endpoints over the same state.
type Server struct {
	cfg     *config.Config
	session *calendar.Session
	locale  dates.Locale
	mux     *http.ServeMux
	tmpl    *template.Template
	log     appLog.Logger
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, session *calendar.Session, log appLog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("web: config is nil")
	}
	if session == nil {
		return nil, errors.New("web: session is nil")
	}
	if log == nil {
		log = appLog.Default()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		session: session,
		locale:  dates.ParseLocale(cfg.Locale),
		mux:     http.NewServeMux(),
		tmpl:    tmpl,
		log:     log,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an already bound listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /week/prev", s.handleWeek(-1))
	s.mux.HandleFunc("POST /week/next", s.handleWeek(1))
	s.mux.HandleFunc("POST /reload", s.handleReload)
	s.mux.HandleFunc("POST /slot", s.handleSlot)
	s.mux.HandleFunc("POST /dialog/input", s.handleDialogInput)
	s.mux.HandleFunc("POST /dialog/confirm", s.handleDialogConfirm)
	s.mux.HandleFunc("POST /dialog/cancel", s.handleDialogCancel)
	s.mux.HandleFunc("GET /api/reservations", s.handleReservations)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type pageData struct {
	Lang string
	L    labels
	Page calendar.Page
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := pageData{
		Lang: string(s.locale),
		L:    labelsFor(s.locale),
		Page: s.session.Page(),
	}

	// Render into a buffer so a template error does not leave a half page.
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "page.html", data); err != nil {
		s.log.Error("render page failed", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handleWeek moves the displayed week by dir and refetches. The fetch is
// detached from the request so a dropped connection does not abort it; a
// newer navigation still supersedes it.
func (s *Server) handleWeek(dir int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithoutCancel(r.Context())
		var err error
		if dir < 0 {
			err = s.session.Prev(ctx)
		} else {
			err = s.session.Next(ctx)
		}
		if err != nil && !errors.Is(err, store.ErrStale) {
			s.log.Debug("week navigation fetch failed", "err", err, "week", s.session.Page().WeekKey)
		}
		redirectHome(w, r)
	}
}

// handleReload retries after a probe or fetch failure.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Retry(context.WithoutCancel(r.Context())); err != nil && !errors.Is(err, store.ErrStale) {
		s.log.Debug("reload failed", "err", err, "week", s.session.Page().WeekKey)
	}
	redirectHome(w, r)
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	date, err := dates.ParseDateKey(r.PostForm.Get("date"))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	hour, err := strconv.Atoi(r.PostForm.Get("hour"))
	if err != nil {
		http.Error(w, "invalid hour", http.StatusBadRequest)
		return
	}

	if !s.session.Select(model.Slot{Date: date, Hour: hour}) {
		s.log.Debug("slot not selectable", "date", dates.DateKey(date), "hour", hour)
	}
	redirectHome(w, r)
}

// applyDialogFields copies submitted fields into the dialog. Absent fields
// are left unchanged.
func (s *Server) applyDialogFields(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	d := s.session.Dialog()
	if v, ok := r.PostForm["title"]; ok && len(v) > 0 {
		d.SetTitle(strings.TrimSpace(v[0]))
	}
	if v, ok := r.PostForm["content"]; ok && len(v) > 0 {
		d.SetContent(strings.TrimSpace(v[0]))
	}
	return nil
}

func (s *Server) handleDialogInput(w http.ResponseWriter, r *http.Request) {
	if err := s.applyDialogFields(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleDialogConfirm(w http.ResponseWriter, r *http.Request) {
	if err := s.applyDialogFields(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	// On failure the dialog stays open with its input intact.
	s.session.Confirm(context.WithoutCancel(r.Context()))
	redirectHome(w, r)
}

func (s *Server) handleDialogCancel(w http.ResponseWriter, r *http.Request) {
	s.session.Dialog().Cancel()
	redirectHome(w, r)
}

// reservationsResponse is the JSON response shape for /api/reservations.
type reservationsResponse struct {
	Week         string              `json:"week,omitempty"`
	Loading      bool                `json:"loading"`
	Error        string              `json:"error,omitempty"`
	ErrorSource  string              `json:"error_source,omitempty"`
	Reservations []model.Reservation `json:"reservations"`
}

func (s *Server) handleReservations(w http.ResponseWriter, _ *http.Request) {
	st := s.session.State()
	resp := reservationsResponse{
		Loading:      st.Loading,
		Error:        st.Err,
		Reservations: st.List(),
	}
	if !st.Week.IsZero() {
		resp.Week = dates.DateKey(st.Week)
	}
	if st.Err != "" {
		resp.ErrorSource = st.ErrSource.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	st := s.session.State()
	if st.Week.IsZero() {
		writeError(w, http.StatusServiceUnavailable, "no week loaded")
		return
	}

	body := ics.Export(st.List(), ics.ExportOptions{
		Name: labelsFor(s.locale).AppTitle + " " + dates.DateKey(st.Week),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="roomcal-`+dates.DateKey(st.Week)+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handlePreview serves the last captured PNG from cfg.PreviewPath.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile answers 404 for a missing file.
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
