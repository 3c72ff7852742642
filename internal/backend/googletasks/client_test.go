package googletasks_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"overdue/internal/backend/googletasks"
	"overdue/internal/config"
	"overdue/internal/service"
)

var fixedNow = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func newClient(t *testing.T, handler http.HandlerFunc) *googletasks.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := googletasks.NewWithHTTPClient(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	c.SetClock(func() time.Time { return fixedNow })
	return c
}

func TestListTasks_Overdue(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/tasks"), r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2026-10-19T00:00:00.000Z", q.Get("dueMax"))
		assert.Equal(t, "false", q.Get("showCompleted"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[
			{"id":"g1","title":"Pay rent","due":"2026-10-01T00:00:00.000Z"},
			{"id":"g2","title":"Renew passport","due":"2026-10-18T00:00:00.000Z"}
		]}`)
	})

	got, err := c.ListTasks(context.Background(), service.FilterOverdue)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g1", got[0].ID)
	assert.Equal(t, "Pay rent", got[0].Content)
	assert.Equal(t, "2026-10-01", got[0].Due.Date)
	assert.False(t, got[0].Recurring())
	assert.Equal(t, "2026-10-18", got[1].Due.Date)
}

func TestListTasks_UnsupportedFilter(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.ListTasks(context.Background(), "today | p1")
	assert.ErrorIs(t, err, googletasks.ErrUnsupportedFilter)
}

func TestUpdateTask(t *testing.T) {
	tests := []struct {
		name    string
		req     service.UpdateRequest
		wantDue string
	}{
		{"date", service.PostponeTo("2026-10-20"), "2026-10-20T00:00:00.000Z"},
		{"today", service.DueStringRequest("Today"), "2026-10-19T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPatch, r.Method)
				assert.True(t, strings.HasSuffix(r.URL.Path, "/tasks/g1"), r.URL.Path)

				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, tt.wantDue, body["due"])

				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"id":"g1","title":"Pay rent","due":"`+tt.wantDue+`"}`)
			})

			task, err := c.UpdateTask(context.Background(), "g1", tt.req)
			require.NoError(t, err)
			assert.Equal(t, "g1", task.ID)
			assert.Equal(t, tt.wantDue[:10], task.Due.Date)
		})
	}
}

func TestUpdateTask_UnsupportedDueString(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.UpdateTask(context.Background(), "g1", service.DueStringRequest("every day"))
	assert.ErrorIs(t, err, googletasks.ErrUnsupportedDueString)

	_, err = c.UpdateTask(context.Background(), "g1", service.PostponeTo("19/10/2026"))
	assert.Error(t, err)
}

func TestUpdateTask_NotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Task not found."}}`)
	})

	_, err := c.UpdateTask(context.Background(), "missing", service.PostponeTo("2026-10-19"))
	assert.ErrorIs(t, err, service.ErrNotFound)
}

const oauthClientJSON = `{"installed":{
	"client_id":"id.apps.googleusercontent.com",
	"client_secret":"secret",
	"redirect_uris":["http://localhost"],
	"auth_uri":"https://accounts.google.com/o/oauth2/auth",
	"token_uri":"https://oauth2.googleapis.com/token"
}}`

const tokenJSON = `{"access_token":"a","token_type":"Bearer","refresh_token":"r"}`

func TestNew_Credentials(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		wantErr   bool
		wantInErr string
	}{
		{"no files", nil, true, "oauth_client.json"},
		{"no token", map[string]string{config.OAuthClientFile: oauthClientJSON}, true, "token.json"},
		{"both", map[string]string{config.OAuthClientFile: oauthClientJSON, config.TokenFile: tokenJSON}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, body := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0600))
			}

			c, err := googletasks.New(context.Background(), &config.Config{Dir: dir, GoogleTaskList: "work"})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, c)
				return
			}
			assert.ErrorIs(t, err, config.ErrMissingCredentials)
			assert.ErrorContains(t, err, tt.wantInErr)
		})
	}
}

func TestErrors_ForbiddenReasons(t *testing.T) {
	tests := []struct {
		reason string
		want   error
	}{
		{"rateLimitExceeded", service.ErrRateLimited},
		{"userRateLimitExceeded", service.ErrRateLimited},
		{"quotaExceeded", service.ErrRateLimited},
		{"forbidden", service.ErrUnauthorized},
		{"insufficientPermissions", service.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, `{"error":{"code":403,"message":"denied","errors":[{"domain":"usageLimits","reason":"`+tt.reason+`","message":"denied"}]}}`)
			})

			_, err := c.ListTasks(context.Background(), service.FilterOverdue)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestErrors_TooManyRequests(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"slow down"}}`)
	})

	_, err := c.UpdateTask(context.Background(), "g1", service.PostponeTo("2026-10-19"))
	assert.ErrorIs(t, err, service.ErrRateLimited)
	assert.NotErrorIs(t, err, service.ErrUnauthorized)
}
