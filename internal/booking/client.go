package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roomcal/internal/dates"
	appLog "roomcal/internal/log"
	"roomcal/internal/model"
)

// DefaultBaseURL is used when neither the environment nor the config file
// provide a base URL.
const DefaultBaseURL = "https://os3-378-22222.vs.sakura.ne.jp:5001"

// Client talks to the remote booking service.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     appLog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l appLog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a Client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     appLog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &http.Client{Timeout: c.timeout}
	return c
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string { return c.baseURL }

// record is the wire shape of a booking as returned by GET /bookings.
type record struct {
	Date      string    `json:"date"`
	StartTime hourValue `json:"start_time"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
}

// createRequest is the wire shape of POST /booking.
type createRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

// hourValue accepts both 9 and "9".
type hourValue int

func (h *hourValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("start_time %s is not an hour", string(b))
	}
	*h = hourValue(n)
	return nil
}

// Bookings returns the bookings between start and end, both inclusive.
//
// GET {base}/bookings?start=YYYYMMDD&end=YYYYMMDD
func (c *Client) Bookings(ctx context.Context, start, end time.Time) ([]model.Reservation, error) {
	q := url.Values{}
	q.Set("start", dates.DateKey(start))
	q.Set("end", dates.DateKey(end))
	u := c.baseURL + "/bookings?" + q.Encode()

	status, body, err := c.do(ctx, "fetch", http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	if !isSuccess(status) {
		return nil, &Error{
			Kind:    KindStatus,
			Op:      "fetch",
			Status:  status,
			Message: fmt.Sprintf("HTTP error: status %d, message: %s", status, truncateBody(body, 200)),
		}
	}

	if !json.Valid(body) {
		return nil, &Error{
			Kind:    KindMalformed,
			Op:      "fetch",
			Status:  status,
			Message: "invalid JSON response: " + truncateBody(body, 100),
		}
	}
	if kind := jsonKind(body); kind != "array" {
		return nil, &Error{
			Kind:    KindMalformed,
			Op:      "fetch",
			Status:  status,
			Message: "invalid data format: expected an array, got " + kind,
		}
	}

	var records []record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &Error{
			Kind:    KindMalformed,
			Op:      "fetch",
			Status:  status,
			Message: "invalid booking record: " + err.Error(),
			Err:     err,
		}
	}

	out := make([]model.Reservation, 0, len(records))
	for _, r := range records {
		out = append(out, model.Reservation{
			Date:    r.Date,
			Hour:    int(r.StartTime),
			Title:   r.Title,
			Content: r.Content,
		})
	}

	c.log.Debug("bookings fetched",
		"request_id", RequestID(ctx),
		"start", q.Get("start"),
		"end", q.Get("end"),
		"count", len(out),
	)
	return out, nil
}

// Create books a single slot.
//
// POST {base}/booking with {date, start_time (string), title, content}.
func (c *Client) Create(ctx context.Context, r model.Reservation) error {
	payload, err := json.Marshal(createRequest{
		Date:      r.Date,
		StartTime: strconv.Itoa(r.Hour),
		Title:     r.Title,
		Content:   r.Content,
	})
	if err != nil {
		return &Error{Kind: KindMalformed, Op: "create", Message: "encode request: " + err.Error(), Err: err}
	}

	status, body, err := c.do(ctx, "create", http.MethodPost, c.baseURL+"/booking", payload)
	if err != nil {
		return err
	}

	// The service always answers with a JSON object; anything else is a
	// failure even with a success status.
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return &Error{
			Kind:    KindMalformed,
			Op:      "create",
			Status:  status,
			Message: "invalid response from server: " + truncateBody(body, 100),
			Err:     err,
		}
	}

	if !isSuccess(status) {
		if msg, ok := result["error"].(string); ok && msg != "" {
			return &Error{Kind: KindServer, Op: "create", Status: status, Message: msg}
		}
		return &Error{
			Kind:    KindStatus,
			Op:      "create",
			Status:  status,
			Message: fmt.Sprintf("server error: %d. response: %s", status, truncateBody(body, 200)),
		}
	}

	c.log.Info("booking created",
		"request_id", RequestID(ctx),
		"date", r.Date,
		"hour", r.Hour,
	)
	return nil
}

// Health probes GET {base}/api/health. A nil error means reachable.
func (c *Client) Health(ctx context.Context) error {
	status, body, err := c.do(ctx, "health", http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		c.log.Error("booking service health check failed", ErrUnhealthy,
			"request_id", RequestID(ctx),
			"status", status,
			"body", truncateBody(body, 200),
		)
		return &Error{
			Kind:    KindStatus,
			Op:      "health",
			Status:  status,
			Message: fmt.Sprintf("booking service is not responding correctly (status %d)", status),
			Err:     ErrUnhealthy,
		}
	}
	return nil
}

// do performs the request and reads the full body. Only transport level
// failures are returned as errors; the status is left to the caller.
func (c *Client) do(ctx context.Context, op, method, u string, payload []byte) (int, []byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, &Error{Kind: KindConnectivity, Op: op, Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	c.log.Debug("booking request", "request_id", RequestID(ctx), "op", op, "method", method, "url", u)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil, &Error{Kind: KindConnectivity, Op: op, Message: op + ": request canceled", Err: err}
		}
		return 0, nil, &Error{
			Kind:    KindConnectivity,
			Op:      op,
			Message: "cannot reach booking service: " + err.Error(),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &Error{
			Kind:    KindConnectivity,
			Op:      op,
			Status:  resp.StatusCode,
			Message: "read response: " + err.Error(),
			Err:     err,
		}
	}

	c.log.Debug("booking response", "request_id", RequestID(ctx), "op", op, "status", resp.StatusCode, "bytes", len(body))
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// jsonKind names the top-level JSON type of a valid document.
func jsonKind(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "empty"
	}
	switch b[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
