// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sync"
	"time"

	"overdue/internal/service"
)

// UpdateCall records one UpdateTask invocation.
type UpdateCall struct {
	ID  string
	Req service.UpdateRequest
}

// FakeService is an in-memory implementation of service.Service for testing.
// Every task it holds is treated as matching any filter.
type FakeService struct {
	mu       sync.Mutex
	tasks    []service.Task
	calls    []UpdateCall
	filters  []string
	inFlight int
	peak     int

	// Error injection for testing
	ListTasksErr error
	UpdateErr    map[string]error // taskID -> error

	// UpdateDelay is slept inside every UpdateTask call.
	UpdateDelay time.Duration
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{UpdateErr: make(map[string]error)}
}

// AddTask adds a non-recurring task due on date.
func (f *FakeService) AddTask(id, content, date string) {
	f.add(service.Task{ID: id, Content: content, Due: &service.Due{Date: date, String: date}})
}

// AddRecurringTask adds a recurring task with the given rule text.
func (f *FakeService) AddRecurringTask(id, content, date, rule string) {
	f.add(service.Task{ID: id, Content: content, Due: &service.Due{Date: date, String: rule, IsRecurring: true}})
}

// AddUndatedTask adds a task without a due descriptor.
func (f *FakeService) AddUndatedTask(id, content string) {
	f.add(service.Task{ID: id, Content: content})
}

func (f *FakeService) add(t service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
}

// Task returns the stored task by ID.
func (f *FakeService) Task(id string) (service.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// Calls returns a copy of the recorded UpdateTask calls in arrival order.
func (f *FakeService) Calls() []UpdateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]UpdateCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Filters returns the filters passed to ListTasks.
func (f *FakeService) Filters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.filters...)
}

// PeakInFlight returns the highest number of concurrent UpdateTask calls seen.
func (f *FakeService) PeakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, filter string) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	result := make([]service.Task, len(f.tasks))
	for i, t := range f.tasks {
		result[i] = cloneTask(t)
	}
	return result, nil
}

// UpdateTask implements service.Service. A Date request keeps the
// recurrence rule; a DueString request replaces the rule text and clears
// the recurring flag, mirroring a backend parsing "Today".
func (f *FakeService) UpdateTask(ctx context.Context, id string, req service.UpdateRequest) (service.Task, error) {
	f.mu.Lock()
	f.calls = append(f.calls, UpdateCall{ID: id, Req: req})
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	delay := f.UpdateDelay
	injected := f.UpdateErr[id]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return service.Task{}, ctx.Err()
		}
	}
	if injected != nil {
		return service.Task{}, injected
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID != id {
			continue
		}
		due := service.Due{}
		if t.Due != nil {
			due = *t.Due
		}
		switch req.Kind() {
		case service.KindDate:
			due.Date = req.Date
		case service.KindDueString:
			due = service.Due{Date: req.DueString, String: req.DueString}
		}
		f.tasks[i].Due = &due
		return cloneTask(f.tasks[i]), nil
	}
	return service.Task{}, service.ErrNotFound
}

func cloneTask(t service.Task) service.Task {
	if t.Due != nil {
		d := *t.Due
		t.Due = &d
	}
	return t
}
