package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/metric"
)

// ErrQueueClosed is returned by Submit after Shutdown.
var ErrQueueClosed = errors.New("delivery queue closed")

// Executor runs a single delivery task.
type Executor interface {
	Execute(ctx context.Context, task Task)
}

// Queue is an unbounded FIFO of delivery tasks served by a fixed number of
// workers. With a single worker, tasks run strictly in submission order.
type Queue struct {
	exec    Executor
	metrics *metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Task
	closed  bool

	wg conc.WaitGroup
}

// NewQueue starts workers goroutines executing submitted tasks with exec.
func NewQueue(exec Executor, workers int, mp metric.MeterProvider) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		exec:    exec,
		metrics: newMetrics(mp),
		ctx:     ctx,
		cancel:  cancel,
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < workers; i++ {
		q.wg.Go(q.worker)
	}
	return q
}

// Submit appends task to the queue and returns immediately.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()
	q.cond.Signal()

	if q.metrics.queueDepth != nil {
		q.metrics.queueDepth.Add(context.Background(), 1)
	}
	return nil
}

// Len returns the number of tasks waiting for a worker.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Shutdown stops accepting tasks and waits for queued ones to finish. If ctx
// expires first, in-flight requests are cancelled and remaining tasks dropped.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()

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
		q.mu.Lock()
		dropped := len(q.pending)
		q.pending = nil
		q.mu.Unlock()
		if q.metrics.queueDepth != nil && dropped > 0 {
			q.metrics.queueDepth.Add(context.Background(), int64(-dropped))
		}
		q.cancel()
		<-done
		slog.Warn("delivery queue shutdown timed out", "dropped_tasks", dropped)
		return fmt.Errorf("shutdown context: %w", ctx.Err())
	}
}

func (q *Queue) worker() {
	for {
		task, ok := q.next()
		if !ok {
			return
		}
		q.run(task)
	}
}

func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 {
		if q.closed {
			return Task{}, false
		}
		q.cond.Wait()
	}

	task := q.pending[0]
	q.pending[0] = Task{}
	q.pending = q.pending[1:]

	if q.metrics.queueDepth != nil {
		q.metrics.queueDepth.Add(context.Background(), -1)
	}
	return task, true
}

func (q *Queue) run(task Task) {
	var pc panics.Catcher
	pc.Try(func() { q.exec.Execute(q.ctx, task) })
	if r := pc.Recovered(); r != nil {
		slog.Error("delivery task panicked",
			"task_id", task.ID,
			"panic", r.Value)
	}
}
