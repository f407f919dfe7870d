// Package tasks runs fire-and-forget side effects, such as owner
// notifications and push messages, on a bounded worker pool.
//
// Enqueue never blocks the caller. Tasks are never retried; a task that
// fails, times out, or is dropped because the buffer is full is written to
// the queue's failure log, which is available through Failures.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentease/admin/pkg/metrics"
)

var (
	ErrQueueFull = errors.New("task queue full")
	ErrStopped   = errors.New("task queue stopped")
)

// Task is one unit of side-effect work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Failure is an entry of the failure log.
type Failure struct {
	Task string    `json:"task"`
	Err  string    `json:"error"`
	At   time.Time `json:"at"`
}

type Options struct {
	Workers     int
	Buffer      int
	FailureLog  int
	TaskTimeout time.Duration
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Buffer <= 0 {
		o.Buffer = 32
	}
	if o.FailureLog <= 0 {
		o.FailureLog = 100
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 10 * time.Second
	}
}

type Queue struct {
	opts   Options
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	closed   bool
	failures []Failure
	next     int
}

func New(opts Options) *Queue {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		opts:     opts,
		queue:    make(chan Task, opts.Buffer),
		ctx:      ctx,
		cancel:   cancel,
		failures: make([]Failure, 0, opts.FailureLog),
	}
}

// Start launches the workers. Calling Start more than once has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.loop()
	}
}

// Enqueue schedules t. It reports false when the task was dropped.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.fail(t.Name, ErrStopped)
		q.opts.Metrics.ObserveTask(t.Name, ErrStopped, true)
		return false
	}
	select {
	case q.queue <- t:
		q.mu.RUnlock()
		return true
	default:
		q.mu.RUnlock()
		q.fail(t.Name, ErrQueueFull)
		q.opts.Metrics.ObserveTask(t.Name, ErrQueueFull, true)
		return false
	}
}

// Stop stops accepting tasks and waits for queued ones to finish. If ctx
// expires first, running tasks are cancelled. Tasks queued on a queue that
// was never started are recorded as failed with ErrStopped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	started := q.started
	q.mu.Unlock()
	if !started {
		for t := range q.queue {
			q.fail(t.Name, ErrStopped)
			q.opts.Metrics.ObserveTask(t.Name, ErrStopped, true)
		}
		q.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

// Failures returns the failure log, oldest first.
func (q *Queue) Failures() []Failure {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.failures) < q.opts.FailureLog {
		out := make([]Failure, len(q.failures))
		copy(out, q.failures)
		return out
	}
	out := make([]Failure, 0, len(q.failures))
	out = append(out, q.failures[q.next:]...)
	return append(out, q.failures[:q.next]...)
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for t := range q.queue {
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	ctx, cancel := context.WithTimeout(q.ctx, q.opts.TaskTimeout)
	defer cancel()

	err := safeRun(ctx, t)
	q.opts.Metrics.ObserveTask(t.Name, err, false)
	if err != nil {
		q.fail(t.Name, err)
		return
	}
	q.opts.Logger.Debug().Str("task", t.Name).Msg("side effect delivered")
}

func safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("task panicked")
		}
	}()
	return t.Run(ctx)
}

func (q *Queue) fail(name string, err error) {
	q.opts.Logger.Error().Err(err).Str("task", name).Msg("side effect failed")

	f := Failure{Task: name, Err: err.Error(), At: time.Now()}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.failures) < q.opts.FailureLog {
		q.failures = append(q.failures, f)
		return
	}
	q.failures[q.next] = f
	q.next = (q.next + 1) % q.opts.FailureLog
}
