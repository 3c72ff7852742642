// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"
	"errors"
)

// FilterOverdue is the filter expression selecting tasks due before today.
const FilterOverdue = "overdue"

var (
	// ErrUnauthorized is returned when the backend rejects the credential.
	ErrUnauthorized = errors.New("token expired or revoked")

	// ErrNotFound is returned when the task does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the backend throttles the caller or
	// a usage quota is exhausted.
	ErrRateLimited = errors.New("rate limit or quota exceeded")

	// ErrTimeout is returned when a backend call exceeds its deadline.
	ErrTimeout = errors.New("request timed out")
)

// Service defines the interface for task backend operations.
// The runner never imports a backend SDK directly.
//
// Implementations must be safe for concurrent use: the runner issues
// UpdateTask calls from many goroutines against one Service value.
type Service interface {
	// ListTasks returns the open tasks matching filter, in API order.
	ListTasks(ctx context.Context, filter string) ([]Task, error)

	// UpdateTask applies req to the task with the given ID and returns
	// the task as stored by the backend after the update.
	UpdateTask(ctx context.Context, id string, req UpdateRequest) (Task, error)
}
