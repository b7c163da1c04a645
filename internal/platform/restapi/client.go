// Package restapi is the typed gateway to the booking backend. Every method
// maps to exactly one REST endpoint, carries the bearer token when one is
// available, and surfaces failures as the typed errors in errors.go — nothing
// is swallowed here.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps how much of a response body the gateway will read.
const maxBodyBytes = 1 << 20

// TokenSource supplies the current access token. An empty string means the
// request goes out unauthenticated.
type TokenSource interface {
	AccessToken() string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *Client) { g.httpClient = c }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(g *Client) { g.httpClient.Timeout = d }
}

// Client is the booking gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     zerolog.Logger
}

// NewClient creates a gateway rooted at baseURL (e.g. "http://host/api").
func NewClient(baseURL string, tokens TokenSource, logger zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: tokens,
		logger: logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// -- Auth --

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	body := map[string]string{"username": username, "password": password}
	var tokens TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/token/", nil, body, false, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Register creates an account and returns a token pair (implicit login).
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	var tokens TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/register/", nil, req, false, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/me/", nil, nil, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// -- Slots --

// ListSlots returns the slots in [start, end). The endpoint is public.
func (c *Client) ListSlots(ctx context.Context, start, end time.Time) ([]Slot, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.UTC().Format(time.RFC3339))
	}
	var slots []Slot
	if err := c.do(ctx, http.MethodGet, "/appointments/", q, nil, false, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// CreateSlot creates an availability slot starting at start. The server
// enforces that only doctors may do this.
func (c *Client) CreateSlot(ctx context.Context, start time.Time) (*Slot, error) {
	body := map[string]string{"start": start.UTC().Format(time.RFC3339)}
	var slot Slot
	if err := c.do(ctx, http.MethodPost, "/appointments/", nil, body, true, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// DeleteSlot removes a slot.
func (c *Client) DeleteSlot(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/appointments/%d/", id), nil, nil, true, nil)
}

// ProbeDoctor reports whether the authenticated user may manage slots. Any
// 2xx on OPTIONS /appointments/ means yes; the caller decides whether a
// failure is worth surfacing.
func (c *Client) ProbeDoctor(ctx context.Context) (bool, error) {
	err := c.do(ctx, http.MethodOptions, "/appointments/", nil, nil, true, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// -- Bookings --

// BookingsBySlot returns the viewer-visible bookings for a slot. The server
// filters to confirmed bookings and, for regular users, to their own.
func (c *Client) BookingsBySlot(ctx context.Context, slotID int64) ([]Booking, error) {
	q := url.Values{}
	q.Set("slot", fmt.Sprintf("%d", slotID))
	var bookings []Booking
	if err := c.do(ctx, http.MethodGet, "/bookings/", q, nil, true, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// MyBookings returns the current user's bookings.
func (c *Client) MyBookings(ctx context.Context) ([]Booking, error) {
	var bookings []Booking
	if err := c.do(ctx, http.MethodGet, "/bookings/mine/", nil, nil, true, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// AllBookings returns every booking. Administrator-only; a 2xx doubles as the
// administrator role probe.
func (c *Client) AllBookings(ctx context.Context) ([]Booking, error) {
	var bookings []Booking
	if err := c.do(ctx, http.MethodGet, "/bookings/all_bookings/", nil, nil, true, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// CreateBooking reserves a slot with the given reason.
func (c *Client) CreateBooking(ctx context.Context, slotID int64, reason string) (*Booking, error) {
	body := map[string]interface{}{"slot": slotID, "reason": reason}
	var booking Booking
	if err := c.do(ctx, http.MethodPost, "/bookings/", nil, body, true, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingReason changes a booking's reason.
func (c *Client) UpdateBookingReason(ctx context.Context, id int64, reason string) (*Booking, error) {
	body := map[string]string{"reason": reason}
	var booking Booking
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/bookings/%d/", id), nil, body, true, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// CancelBooking transitions a booking to cancelled. The record survives; this
// is never a deletion.
func (c *Client) CancelBooking(ctx context.Context, id int64) (*Booking, error) {
	var booking Booking
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/bookings/%d/cancel/", id), nil, struct{}{}, true, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// do issues one request and decodes the response into out (may be nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, auth bool, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).
			Str("request_id", requestID).
			Str("method", method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Msg("gateway request failed")
		return &ServerError{StatusCode: 0, Detail: "the booking service is unreachable"}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	evt := c.logger.Debug()
	if resp.StatusCode >= 400 {
		evt = c.logger.Warn()
	}
	evt.
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
