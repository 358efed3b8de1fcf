// Package bookingtest provides an in-memory booking service for tests.
package bookingtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"roomcal/internal/model"
)

// Server is an httptest server that speaks the booking API.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	bookings map[string]model.Reservation

	healthStatus int
	fetchStatus  int
	fetchBody    string
	createStatus int
	createBody   string

	fetchCount  int
	createCount int
}

// New starts a Server. Call Close when done.
func New() *Server {
	s := &Server{
		bookings:     make(map[string]model.Reservation),
		healthStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/bookings", s.handleBookings)
	mux.HandleFunc("/booking", s.handleBooking)
	s.Server = httptest.NewServer(mux)
	return s
}

// Add stores a booking as if it had been created earlier.
func (s *Server) Add(r model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[key(r.Date, r.Hour)] = r
}

// Has reports whether a booking exists for the slot.
func (s *Server) Has(date string, hour int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bookings[key(date, hour)]
	return ok
}

// SetHealth sets the status returned by /api/health.
func (s *Server) SetHealth(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthStatus = status
}

// FailFetch makes /bookings answer with status and a raw body. Status 0 resets.
func (s *Server) FailFetch(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchStatus, s.fetchBody = status, body
}

// FailCreate makes /booking answer with status and a raw body. Status 0 resets.
func (s *Server) FailCreate(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createStatus, s.createBody = status, body
}

// Fetches returns how many /bookings requests were served.
func (s *Server) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCount
}

// Creates returns how many /booking requests were served.
func (s *Server) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCount
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	status := s.healthStatus
	s.mu.Unlock()
	writeJSON(w, status, map[string]string{"status": http.StatusText(status)})
}

type record struct {
	Date      string `json:"date"`
	StartTime int    `json:"start_time"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCount++

	if s.fetchStatus != 0 {
		w.WriteHeader(s.fetchStatus)
		_, _ = w.Write([]byte(s.fetchBody))
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if len(start) != 8 || len(end) != 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start and end are required"})
		return
	}

	out := make([]record, 0)
	for _, b := range s.bookings {
		// YYYYMMDD compares correctly as a string.
		if b.Date < start || b.Date > end {
			continue
		}
		out = append(out, record{Date: b.Date, StartTime: b.Hour, Title: b.Title, Content: b.Content})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCount++

	if s.createStatus != 0 {
		w.WriteHeader(s.createStatus)
		_, _ = w.Write([]byte(s.createBody))
		return
	}

	var req struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		Title     string `json:"title"`
		Content   string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	hour, err := strconv.Atoi(req.StartTime)
	if err != nil || req.Date == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date, start_time and title are required"})
		return
	}

	k := key(req.Date, hour)
	if _, exists := s.bookings[k]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "slot already booked"})
		return
	}
	s.bookings[k] = model.Reservation{Date: req.Date, Hour: hour, Title: req.Title, Content: req.Content}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "booking created"})
}

func key(date string, hour int) string {
	return date + "/" + strconv.Itoa(hour)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
