// Package todoist implements the service.Service interface using the Todoist REST API.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"overdue/internal/config"
	"overdue/internal/service"
)

// APITimeout is the default timeout for API calls.
const APITimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 1 << 10

// APIError is returned for non-2xx responses not covered by a sentinel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("todoist: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("todoist: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client implements service.Service using the Todoist REST API.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

// New creates a Todoist client authenticated with cfg.APIToken.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, config.ErrMissingToken
	}

	// Static bearer token; Todoist personal tokens never refresh.
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIToken,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(ctx, tokenSource)

	c := NewWithHTTPClient(httpClient, cfg.BaseURL)
	if cfg.Timeout > 0 {
		c.timeout = cfg.Timeout
	}
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
// An empty baseURL selects config.DefaultBaseURL.
func NewWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: APITimeout,
	}
}

// apiTask mirrors the REST task object; only the fields we read.
type apiTask struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Due     *apiDue `json:"due"`
}

type apiDue struct {
	Date        string `json:"date"`
	String      string `json:"string"`
	IsRecurring bool   `json:"is_recurring"`
	Datetime    string `json:"datetime,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// updateBody is the POST /tasks/{id} payload. Only one field is ever sent.
type updateBody struct {
	DueDate   string `json:"due_date,omitempty"`
	DueString string `json:"due_string,omitempty"`
}

// ListTasks returns active tasks matching a Todoist filter query.
func (c *Client) ListTasks(ctx context.Context, filter string) ([]service.Task, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}

	var raw []apiTask
	if err := c.do(ctx, http.MethodGet, "/tasks?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	result := make([]service.Task, 0, len(raw))
	for _, t := range raw {
		result = append(result, toTask(t))
	}
	return result, nil
}

// UpdateTask changes the due date of a task.
func (c *Client) UpdateTask(ctx context.Context, id string, req service.UpdateRequest) (service.Task, error) {
	if req.Kind() == service.KindInvalid {
		return service.Task{}, fmt.Errorf("todoist: update %s: exactly one of date or due string required", id)
	}

	body := updateBody{DueDate: req.Date, DueString: req.DueString}

	var raw apiTask
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id), body, &raw); err != nil {
		return service.Task{}, err
	}
	return toTask(raw), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("todoist: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("todoist: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("todoist: decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("todoist: %w", service.ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("todoist: %w", service.ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("todoist: %w", service.ErrRateLimited)
	}
	return &APIError{StatusCode: resp.StatusCode, Body: msg}
}

// wrapError maps transport failures to service sentinels.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("todoist: %w", service.ErrTimeout)
	}
	return fmt.Errorf("todoist: %w", err)
}

func toTask(t apiTask) service.Task {
	task := service.Task{ID: t.ID, Content: t.Content}
	if t.Due != nil {
		task.Due = &service.Due{
			Date:        t.Due.Date,
			String:      t.Due.String,
			IsRecurring: t.Due.IsRecurring,
			Datetime:    t.Due.Datetime,
			Timezone:    t.Due.Timezone,
		}
	}
	return task
}
