// Package queue implements a pausable worker pool that runs tasks in
// submission order with a cap on how many run at once.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"searchads-client/internal/components/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	report_queue_pending   = "queue.pending"
	report_queue_in_flight = "queue.in-flight"
	report_queue_task      = "queue.task"
)

const DefaultConcurrency = 2

var ErrClosed = errors.New("queue: closed")

var meter = otel.Meter("searchads/queue")

// Work is the function run by a task.
type Work[T any] func(ctx context.Context) (T, error)

type task[T any] struct {
	id     string
	work   Work[T]
	future *Future[T]
}

type Options struct {
	// Concurrency is the max amount of tasks running at once, it defaults to 2.
	Concurrency int
	// TaskTimeout bounds each task, 0 means no timeout.
	TaskTimeout time.Duration
	// StartResumed makes the queue drain immediately instead of waiting for Resume.
	StartResumed bool
	Telemetry    telemetry.API
}

type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []*task[T]
	paused   bool
	closed   bool
	inFlight int

	timeout time.Duration
	tel     telemetry.API
	gauge   metric.Int64UpDownCounter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New[T any](opts Options) *Queue[T] {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Discard{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue[T]{
		paused:  !opts.StartResumed,
		timeout: opts.TaskTimeout,
		tel:     tel,
		ctx:     ctx,
		cancel:  cancel,
	}
	q.cond = sync.NewCond(&q.mu)

	gauge, err := meter.Int64UpDownCounter(
		"searchads.queue.in_flight",
		metric.WithDescription("tasks currently executing"),
	)
	if err != nil {
		tel.ReportWarning(report_queue_in_flight, fmt.Errorf("create gauge: %w", err))
		gauge = noop.Int64UpDownCounter{}
	}
	q.gauge = gauge

	q.wg.Add(opts.Concurrency)
	for i := 0; i < opts.Concurrency; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues work whether or not the queue is paused.
func (q *Queue[T]) Submit(work Work[T]) *Future[T] {
	t := &task[T]{
		id:     uuid.NewString(),
		work:   work,
		future: newFuture[T](),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		var zero T
		t.future.complete(zero, ErrClosed)
		return t.future
	}
	q.pending = append(q.pending, t)
	pending := len(q.pending)
	q.mu.Unlock()

	q.tel.ReportCount(report_queue_pending, int64(pending))
	q.cond.Signal()
	return t.future
}

// Pause stops workers from picking up new tasks, running tasks are not interrupted.
func (q *Queue[T]) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

func (q *Queue[T]) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Queue[T]) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Len returns the amount of tasks waiting to run.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue[T]) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Close cancels running tasks and stops the workers, tasks still waiting are
// completed with ErrClosed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	q.cond.Broadcast()
	for _, t := range dropped {
		var zero T
		t.future.complete(zero, ErrClosed)
	}
	q.cancel()
	q.wg.Wait()
}

func (q *Queue[T]) next() (*task[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && (q.paused || len(q.pending) == 0) {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.inFlight++
	return t, true
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for {
		t, ok := q.next()
		if !ok {
			return
		}

		q.gauge.Add(q.ctx, 1)
		q.tel.ReportCount(report_queue_in_flight, int64(q.InFlight()))

		q.run(t)

		q.mu.Lock()
		q.inFlight--
		q.mu.Unlock()
		q.gauge.Add(q.ctx, -1)
	}
}

func (q *Queue[T]) run(t *task[T]) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("queue: task panicked: %v", r)
			q.tel.ReportBroken(report_queue_task, t.id, err)
			var zero T
			t.future.complete(zero, err)
		}
	}()

	value, err := t.work(ctx)
	if err != nil {
		q.tel.ReportDebug(report_queue_task, t.id, err)
	}
	t.future.complete(value, err)
}
