package gcal

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

	"go.uber.org/zap"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultRetries     = 3
	defaultRetryDelay  = time.Second
	DefaultAPIEndpoint = "https://www.googleapis.com/calendar/v3"
)

// Client represents a calendar API client bound to one calendar
type Client struct {
	baseURL    string
	calendarID string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewClient creates a new calendar API client
func NewClient(baseURL, calendarID string, tokens TokenSource, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIEndpoint
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		calendarID: calendarID,
		tokens:     tokens,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:     logger,
		retryDelay: defaultRetryDelay,
	}
}

// SetRetryDelay changes the base delay between attempts (attempt n waits n*delay)
func (c *Client) SetRetryDelay(d time.Duration) {
	c.retryDelay = d
}

// CreateEvent inserts event into the calendar
func (c *Client) CreateEvent(ctx context.Context, event Event) (*CreatedEvent, error) {
	path := "/calendars/" + url.PathEscape(c.calendarID) + "/events"

	var created CreatedEvent
	if err := c.doRequest(ctx, http.MethodPost, path, event, &created); err != nil {
		return nil, fmt.Errorf("failed to create event %q: %w", event.Summary, err)
	}

	c.logger.Info("Event created",
		zap.String("summary", event.Summary),
		zap.String("start", event.Start.DateTime),
		zap.String("id", created.ID),
		zap.String("link", created.HTMLLink))

	return &created, nil
}

// doRequest performs HTTP request with retries
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = jsonData
	}

	endpoint := c.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= defaultRetries; attempt++ {
		err := c.doRequestOnce(ctx, method, endpoint, payload, result)
		if err == nil {
			return nil
		}

		lastErr = err
		c.logger.Warn("Request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", defaultRetries),
			zap.Error(err))

		if attempt < defaultRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", defaultRetries, lastErr)
}

// doRequestOnce performs a single HTTP request
func (c *Client) doRequestOnce(ctx context.Context, method, endpoint string, payload []byte, result interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with %s", describeError(resp.StatusCode, respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}
