// Package reschedule moves overdue tasks to today.
//
// A run fetches every task matching the overdue filter, plans one update per
// task and dispatches all updates concurrently. Recurring tasks are
// postponed by setting only the concrete due date, which keeps the
// recurrence rule intact; other tasks are given the due string "Today".
// A failed update is logged and recorded but never stops the others.
package reschedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"overdue/internal/logging"
	"overdue/internal/service"
)

// DueToday is the natural-language directive sent for non-recurring tasks.
const DueToday = "Today"

// ErrFetch wraps any failure to list overdue tasks. No updates are
// attempted after it.
var ErrFetch = errors.New("failed to fetch overdue tasks")

// Failure records one task whose update did not apply.
type Failure struct {
	TaskID string
	Err    error
}

// Result summarises a completed run.
type Result struct {
	Found       int
	Postponed   int // recurring tasks moved by date
	Rescheduled int // non-recurring tasks moved by due string
	Failed      int
	Failures    []Failure // sorted by TaskID
}

// Runner reschedules overdue tasks. A Runner holds no per-run state and
// may be reused.
type Runner struct {
	svc         service.Service
	log         zerolog.Logger
	now         func() time.Time
	loc         *time.Location
	filter      string
	concurrency int
	limiter     *rate.Limiter
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards output.
// Updates log from many goroutines, so the logger's writer must be safe
// for concurrent use (see zerolog.SyncWriter).
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithClock sets the time source used to compute today's date.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLocation sets the time zone for today's date. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithFilter overrides the filter expression passed to ListTasks.
func WithFilter(filter string) Option {
	return func(r *Runner) {
		if filter != "" {
			r.filter = filter
		}
	}
}

// WithConcurrency caps the number of updates in flight. n <= 0 leaves it
// unbounded.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithRateLimit throttles update calls. A non-positive limit disables
// throttling.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(r *Runner) {
		if limit <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = rate.NewLimiter(limit, max(burst, 1))
	}
}

// New creates a Runner over svc.
func New(svc service.Service, opts ...Option) *Runner {
	r := &Runner{
		svc:    svc,
		log:    zerolog.New(io.Discard),
		now:    time.Now,
		loc:    time.UTC,
		filter: service.FilterOverdue,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan returns the update for one overdue task. Recurring tasks keep their
// rule and only move the concrete date; everything else, including tasks
// without a due descriptor, gets the "Today" directive.
func Plan(task service.Task, today string) service.UpdateRequest {
	if task.Recurring() {
		return service.PostponeTo(today)
	}
	return service.DueStringRequest(DueToday)
}

// Today formats t as a calendar date in loc.
func Today(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// Run fetches overdue tasks and moves each to today. It returns an error
// wrapping ErrFetch only when the fetch fails; per-task failures are
// reported in the Result.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.log.Info().Msg("rescheduler started")

	// Computed once so every recurring task in the batch lands on the same date.
	today := Today(r.now(), r.loc)

	tasks, err := r.svc.ListTasks(ctx, r.filter)
	if err != nil {
		r.log.Error().Err(err).Str("filter", r.filter).Msg("failed to fetch overdue tasks")
		return Result{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	if len(tasks) == 0 {
		r.log.Info().Msg("no overdue tasks found")
		return Result{}, nil
	}

	r.log.Info().Int(logging.FieldCount, len(tasks)).Str("date", today).Msg("found overdue tasks")

	res := Result{Found: len(tasks)}
	var mu sync.Mutex

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, task := range tasks {
		task := task
		req := Plan(task, today)
		g.Go(func() error {
			err := r.apply(ctx, task.ID, req)

			mu.Lock()
			defer mu.Unlock()
			res.record(task.ID, req.Kind(), err)

			// Never fail the group: one task's error must not affect the rest.
			return nil
		})
	}
	// Every goroutine returns nil, so Wait only joins; errgroup is used for SetLimit.
	g.Wait()

	slices.SortFunc(res.Failures, func(a, b Failure) int {
		return strings.Compare(a.TaskID, b.TaskID)
	})

	r.log.Info().
		Int("found", res.Found).
		Int("postponed", res.Postponed).
		Int("rescheduled", res.Rescheduled).
		Int("failed", res.Failed).
		Msg("all updates settled")
	return res, nil
}

// apply issues the single update for one task and logs its outcome.
func (r *Runner) apply(ctx context.Context, id string, req service.UpdateRequest) error {
	log := r.log.With().Str(logging.FieldTaskID, id).Stringer(logging.FieldKind, req.Kind()).Logger()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			log.Error().Err(err).Msg("failed to update task")
			return err
		}
	}

	if _, err := r.svc.UpdateTask(ctx, id, req); err != nil {
		log.Error().Err(err).Msg("failed to update task")
		return err
	}

	if req.Kind() == service.KindDate {
		log.Info().Str("date", req.Date).Msg("postponed recurring task to today")
	} else {
		log.Info().Msg("rescheduled task to today")
	}
	return nil
}

func (res *Result) record(id string, kind service.UpdateKind, err error) {
	switch {
	case err != nil:
		res.Failed++
		res.Failures = append(res.Failures, Failure{TaskID: id, Err: err})
	case kind == service.KindDate:
		res.Postponed++
	default:
		res.Rescheduled++
	}
}
