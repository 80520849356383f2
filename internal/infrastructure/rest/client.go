// Package rest implements the ports.Backend contract over HTTP. Every
// outbound request carries the current bearer token when one exists; every
// response passes through a single decode path that maps HTTP failures to
// domain sentinel errors. A 401 triggers the registered forced-logout hook
// before the error is returned to the caller.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
	"github.com/eventosacademicos/campus-agenda/internal/metrics"
)

// TokenSource yields the bearer token for outbound requests. An empty
// string means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client is the HTTP implementation of ports.Backend.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
	log            zerolog.Logger
}

var _ ports.Backend = (*Client)(nil)

// NewClient builds a Client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log,
	}
}

// OnUnauthorized registers the forced-logout hook invoked on any 401
// outside the login endpoint. At most one hook is held.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func (c *Client) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	var out ports.LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", "/auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, in ports.RegisterInput) error {
	return c.do(ctx, http.MethodPost, "/auth/register", "/auth/register", in, nil)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (c *Client) UserSummaries(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	if err := c.do(ctx, http.MethodGet, "/users/summary", "/users/summary", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodGet, "/users/{id}", "/users/"+itoa(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UsersByType(ctx context.Context, t domain.UserType) ([]domain.User, error) {
	var out []domain.User
	if err := c.do(ctx, http.MethodGet, "/users/type/{type}", "/users/type/"+string(t), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PendingUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	if err := c.do(ctx, http.MethodGet, "/users/pending", "/users/pending", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ApproveUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, "/users/{id}/approve", "/users/"+itoa(id)+"/approve", nil, nil)
}

func (c *Client) UpdateUser(ctx context.Context, id int64, in ports.UserInput) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodPut, "/users/{id}", "/users/"+itoa(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/users/{id}", "/users/"+itoa(id), nil, nil)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func (c *Client) UserEvents(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	if err := c.do(ctx, http.MethodGet, "/events", "/events", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AllEvents(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	if err := c.do(ctx, http.MethodGet, "/events/all", "/events/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EventByID(ctx context.Context, id int64) (*domain.Event, error) {
	var out domain.Event
	if err := c.do(ctx, http.MethodGet, "/events/{id}", "/events/"+itoa(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EventsByType(ctx context.Context, t domain.EventType) ([]domain.Event, error) {
	var out []domain.Event
	if err := c.do(ctx, http.MethodGet, "/events/type/{type}", "/events/type/"+string(t), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AcademicEvents(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	if err := c.do(ctx, http.MethodGet, "/events/academic", "/events/academic", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PartyEvents(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	if err := c.do(ctx, http.MethodGet, "/events/party", "/events/party", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EventMembers(ctx context.Context, eventID int64) ([]domain.EventMember, error) {
	var out []domain.EventMember
	if err := c.do(ctx, http.MethodGet, "/events/{id}/members", "/events/"+itoa(eventID)+"/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEvent(ctx context.Context, in ports.EventInput) (*domain.Event, error) {
	var out domain.Event
	if err := c.do(ctx, http.MethodPost, "/events", "/events", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, in ports.EventInput) (*domain.Event, error) {
	var out domain.Event
	if err := c.do(ctx, http.MethodPut, "/events/{id}", "/events/"+itoa(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/events/{id}", "/events/"+itoa(id), nil, nil)
}

func (c *Client) AddEventMember(ctx context.Context, eventID, userID int64) (*domain.Event, error) {
	var out domain.Event
	path := "/events/" + itoa(eventID) + "/members/" + itoa(userID)
	if err := c.do(ctx, http.MethodPost, "/events/{id}/members/{userId}", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveEventMember(ctx context.Context, eventID, userID int64) error {
	path := "/events/" + itoa(eventID) + "/members/" + itoa(userID)
	return c.do(ctx, http.MethodDelete, "/events/{id}/members/{userId}", path, nil, nil)
}

// ---------------------------------------------------------------------------
// Request plumbing
// ---------------------------------------------------------------------------

// do issues one request and decodes the response into out when non-nil.
// endpoint is the templated path used for metrics labels; path is the
// concrete request path.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	metrics.RequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, endpoint, "error").Inc()
		c.log.Warn().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("request failed")
		return fmt.Errorf("%s %s: %w: %v", method, endpoint, domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.RequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.log.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("request completed")

	if resp.StatusCode >= 300 {
		return c.apiError(endpoint, resp)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, endpoint, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, endpoint, err)
	}
	return nil
}

// apiError maps a non-2xx response to a domain sentinel, preserving the
// server message when one is present.
func (c *Client) apiError(endpoint string, resp *http.Response) error {
	msg := serverMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// A rejected login is bad credentials, not an expired session.
		if endpoint == "/auth/login" {
			return wrap(domain.ErrInvalidCredentials, msg)
		}
		if c.onUnauthorized != nil {
			metrics.ForcedLogoutsTotal.Inc()
			c.log.Info().Str("endpoint", endpoint).Msg("authentication rejected, forcing logout")
			c.onUnauthorized()
		}
		return wrap(domain.ErrUnauthenticated, msg)
	case resp.StatusCode == http.StatusForbidden:
		return wrap(domain.ErrForbidden, msg)
	case resp.StatusCode == http.StatusNotFound:
		if strings.HasPrefix(endpoint, "/users") {
			return wrap(domain.ErrUserNotFound, msg)
		}
		return wrap(domain.ErrEventNotFound, msg)
	case resp.StatusCode == http.StatusConflict:
		return wrap(domain.ErrConflict, msg)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return wrap(domain.ErrValidation, msg)
	case resp.StatusCode >= 500:
		return wrap(domain.ErrUnavailable, msg)
	}
	return fmt.Errorf("%s: unexpected status %d: %s", endpoint, resp.StatusCode, msg)
}

// serverMessage extracts the error envelope the backend uses
// ({"message": ...} or {"error": ...}); falls back to the raw body.
func serverMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func wrap(sentinel error, msg string) error {
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
