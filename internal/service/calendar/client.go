package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/classtrackapp/classtrack/internal/logger"
)

const (
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodeNetwork      = "network"
	CodeUnknown      = "unknown"
)

type Error struct {
	Code string

	// Provider throttle hint, set for rate_limited only
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, retry_after: %s, error: %v", e.Code, e.RetryAfter, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code string, retryAfter time.Duration, err error) *Error {
	return &Error{Code: code, RetryAfter: retryAfter, Err: err}
}

// EventTime is the provider's two-shape timestamp: timed events carry
// DateTime, all-day events carry a Date only.
type EventTime struct {
	DateTime time.Time `json:"dateTime,omitempty"`
	Date     string    `json:"date,omitempty"`
}

// Event is the provider's wire shape, read-only to us
type Event struct {
	ID         string    `json:"id"`
	Title      string    `json:"summary"`
	Location   string    `json:"location,omitempty"`
	Status     string    `json:"status,omitempty"`
	Start      EventTime `json:"start"`
	End        EventTime `json:"end"`
	Recurrence []string  `json:"recurrence,omitempty"`
}

type eventsPage struct {
	Items         []Event `json:"items"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

type Client struct {
	BaseURL string

	client *http.Client
	logger logger.Logger
}

func NewClient(baseURL string, logger logger.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger,
	}
}

// FetchRange returns every event in [from, to), draining provider pagination
// fully before returning. The caller needs the complete window: a partial
// page set is never handed back, and a mid-pagination auth failure fails the
// whole call (page tokens are not assumed stable across a token refresh).
func (c *Client) FetchRange(ctx context.Context, accessToken string, from time.Time, to time.Time) ([]Event, error) {
	var events []Event
	pageToken := ""

	for {
		page, err := c.fetchPage(ctx, accessToken, from, to, pageToken)
		if err != nil {
			return nil, err
		}

		events = append(events, page.Items...)
		if page.NextPageToken == "" {
			c.logger.Debug("calendar range fetched", "events", len(events))
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) fetchPage(ctx context.Context, accessToken string, from time.Time, to time.Time, pageToken string) (eventsPage, error) {
	var page eventsPage

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := url.Values{}
	query.Set("timeMin", from.Format(time.RFC3339))
	query.Set("timeMax", to.Format(time.RFC3339))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/events?"+query.Encode(), nil)
	if err != nil {
		return page, NewError(CodeUnknown, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return page, NewError(CodeNetwork, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return page, NewError(CodeUnknown, 0, fmt.Errorf("failed to decode events page: %w", err))
		}
		return page, nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return page, NewError(CodeUnauthorized, 0, fmt.Errorf("access token rejected with status %d", resp.StatusCode))

	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn("calendar provider throttled", "retry_after", retryAfter)
		return page, NewError(CodeRateLimited, retryAfter, fmt.Errorf("provider throttled, retry after %s", retryAfter))

	default:
		c.logger.Warn("unexpected status from calendar provider", "status_code", resp.StatusCode)
		return page, NewError(CodeUnknown, 0, fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}
}

// parseRetryAfter returns 0 when the provider sent no usable hint, so the
// caller can tell "no hint" apart from an actual delay.
func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
