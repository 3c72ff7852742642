// Package googletasks implements the service.Service interface using Google Tasks API.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"overdue/internal/config"
	"overdue/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 30 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"

	// Google Tasks stores only the date part of due; the time is always midnight UTC.
	dueSuffix = "T00:00:00.000Z"
)

var (
	// ErrUnsupportedFilter is returned for filters other than "overdue".
	ErrUnsupportedFilter = errors.New("googletasks: unsupported filter")

	// ErrUnsupportedDueString is returned for due strings other than "today".
	ErrUnsupportedDueString = errors.New("googletasks: unsupported due string")
)

// Client implements service.Service using Google Tasks API.
// It works on a single task list.
type Client struct {
	svc     *tasks.Service
	listID  string
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist in cfg.Dir.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.HasOAuthClient() {
		return nil, fmt.Errorf("%w: oauth_client.json not found in %s", config.ErrMissingCredentials, cfg.Dir)
	}
	if !cfg.HasToken() {
		return nil, fmt.Errorf("%w: token.json not found in %s (log in with the Google OAuth flow first)", config.ErrMissingCredentials, cfg.Dir)
	}

	// Load OAuth client config
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}

	// Load token
	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}

	// Token source auto-refreshes; the refreshed token is not written back.
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))

	c, err := NewWithHTTPClient(ctx, httpClient)
	if err != nil {
		return nil, err
	}
	if cfg.GoogleTaskList != "" {
		c.listID = cfg.GoogleTaskList
	}
	if cfg.Timeout > 0 {
		c.timeout = cfg.Timeout
	}
	if cfg.Location != nil {
		c.loc = cfg.Location
	}
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{
		svc:     svc,
		listID:  DefaultListID,
		timeout: APITimeout,
		loc:     time.UTC,
		now:     time.Now,
	}, nil
}

// SetClock replaces the time source (for testing).
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// today returns the current calendar date in c.loc.
func (c *Client) today() string {
	return c.now().In(c.loc).Format(time.DateOnly)
}

// ListTasks returns open tasks due before today. Only the "overdue"
// filter is understood.
func (c *Client) ListTasks(ctx context.Context, filter string) ([]service.Task, error) {
	if !strings.EqualFold(strings.TrimSpace(filter), service.FilterOverdue) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFilter, filter)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// dueMax is exclusive, so midnight today selects everything due earlier.
	dueMax := c.today() + dueSuffix

	var result []service.Task
	err := c.svc.Tasks.List(c.listID).
		MaxResults(PageSize).
		DueMax(dueMax).
		ShowCompleted(false).
		ShowDeleted(false).
		ShowHidden(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, task := range resp.Items {
				result = append(result, toTask(task))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	return result, nil
}

// UpdateTask patches the due date of a task.
func (c *Client) UpdateTask(ctx context.Context, id string, req service.UpdateRequest) (service.Task, error) {
	var date string
	switch req.Kind() {
	case service.KindDate:
		if _, err := time.Parse(time.DateOnly, req.Date); err != nil {
			return service.Task{}, fmt.Errorf("googletasks: invalid date %q: %w", req.Date, err)
		}
		date = req.Date
	case service.KindDueString:
		// Google Tasks has no natural-language parser; only "today" is mapped.
		if !strings.EqualFold(strings.TrimSpace(req.DueString), "today") {
			return service.Task{}, fmt.Errorf("%w: %q", ErrUnsupportedDueString, req.DueString)
		}
		date = c.today()
	default:
		return service.Task{}, fmt.Errorf("googletasks: update %s: exactly one of date or due string required", id)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	task, err := c.svc.Tasks.Patch(c.listID, id, &tasks.Task{
		Due: date + dueSuffix,
	}).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return toTask(task), nil
}

func toTask(task *tasks.Task) service.Task {
	t := service.Task{ID: task.Id, Content: task.Title}
	if task.Due != "" {
		// Google Tasks exposes no recurrence information.
		t.Due = &service.Due{Date: strings.SplitN(task.Due, "T", 2)[0]}
	}
	return t
}

// wrapError maps API errors to service sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("googletasks: %w", service.ErrTimeout)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("googletasks: %w: %s", service.ErrRateLimited, apiErr.Message)
		case http.StatusForbidden:
			// Google reports quota and rate limits as 403 too.
			if isRateLimit(apiErr) {
				return fmt.Errorf("googletasks: %w: %s", service.ErrRateLimited, apiErr.Message)
			}
			return fmt.Errorf("googletasks: %w (run the OAuth login again)", service.ErrUnauthorized)
		case http.StatusUnauthorized:
			return fmt.Errorf("googletasks: %w (run the OAuth login again)", service.ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("googletasks: %w", service.ErrNotFound)
		}
	}

	return fmt.Errorf("googletasks: %w", err)
}

func isRateLimit(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}
