// Package async runs deferred background work on a bounded worker pool.
//
// Capacity has three tiers, consumed in order:
//  1. CoreWorkers goroutines that live for the lifetime of the Executor
//  2. a backlog queue holding up to QueueCapacity tasks
//  3. up to MaxWorkers-CoreWorkers overflow goroutines, started only when the
//     queue is full and retired after KeepAlive of idleness
//
// A submission that finds all three tiers full is rejected with ErrRejected.
// Every task runs under the diagnostic fields of the context it was submitted
// with (see package diag) and its worker slot is cleared afterwards.
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/tbourn/go-documind-backend/internal/diag"
)

var (
	// ErrRejected is returned by Submit when workers, queue and overflow are
	// all saturated.
	ErrRejected = errors.New("async: executor saturated, task rejected")

	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("async: executor is shut down")
)

// Defaults mirror a small service: 10 core workers, up to 50 total, 100 queued.
const (
	DefaultCoreWorkers   = 10
	DefaultMaxWorkers    = 50
	DefaultQueueCapacity = 100
	DefaultKeepAlive     = 60 * time.Second
	DefaultNamePrefix    = "documind-async-"
)

// TaskInfo identifies a submitted unit of work for failure reporting.
type TaskInfo struct {
	Name string
	Args []any
}

// ErrorHandler receives failures (returned errors and recovered panics) of
// tasks. ctx carries the task's diagnostic fields.
type ErrorHandler func(ctx context.Context, info TaskInfo, err error)

// Options configures an Executor. Zero values select the defaults; a
// negative QueueCapacity disables the backlog queue.
type Options struct {
	CoreWorkers   int
	MaxWorkers    int
	QueueCapacity int
	KeepAlive     time.Duration
	NamePrefix    string
	OnError       ErrorHandler
	// Registerer receives the executor's collectors; nil skips registration.
	Registerer prometheus.Registerer
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

type job struct {
	info TaskInfo
	task diag.Task
}

// Executor is a bounded worker pool. It is safe for concurrent use.
type Executor struct {
	opts     Options
	queue    chan job
	overflow *semaphore.Weighted
	base     context.Context
	cancel   context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	seq    atomic.Int64
	live   atomic.Int64

	rejected  prometheus.Counter
	failed    prometheus.Counter
	liveGauge prometheus.GaugeFunc
	depth     prometheus.GaugeFunc
}

// New starts an Executor with opts.CoreWorkers workers.
func New(opts Options) *Executor {
	if opts.CoreWorkers <= 0 {
		opts.CoreWorkers = DefaultCoreWorkers
	}
	if opts.MaxWorkers == 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.MaxWorkers < opts.CoreWorkers {
		opts.MaxWorkers = opts.CoreWorkers
	}
	switch {
	case opts.QueueCapacity == 0:
		opts.QueueCapacity = DefaultQueueCapacity
	case opts.QueueCapacity < 0:
		opts.QueueCapacity = 0 // direct hand-off only
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.NamePrefix == "" {
		opts.NamePrefix = DefaultNamePrefix
	}
	if opts.OnError == nil {
		opts.OnError = LogFailure
	}

	base, cancel := context.WithCancel(context.Background())
	e := &Executor{
		opts:     opts,
		queue:    make(chan job, opts.QueueCapacity),
		overflow: semaphore.NewWeighted(int64(opts.MaxWorkers - opts.CoreWorkers)),
		base:     base,
		cancel:   cancel,
	}
	e.initMetrics()

	for i := 0; i < opts.CoreWorkers; i++ {
		e.wg.Add(1)
		e.live.Add(1)
		go e.work(e.nextName(), nil, 0)
	}
	return e
}

func (e *Executor) initMetrics() {
	labels := prometheus.Labels{"pool": e.opts.NamePrefix}
	e.rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "async_tasks_rejected_total",
		Help:        "Tasks rejected because the executor was saturated.",
		ConstLabels: labels,
	})
	e.failed = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "async_tasks_failed_total",
		Help:        "Tasks that returned an error or panicked.",
		ConstLabels: labels,
	})
	e.liveGauge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "async_workers_live",
		Help:        "Worker goroutines currently alive.",
		ConstLabels: labels,
	}, func() float64 { return float64(e.live.Load()) })
	e.depth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "async_queue_depth",
		Help:        "Tasks waiting in the backlog queue.",
		ConstLabels: labels,
	}, func() float64 { return float64(len(e.queue)) })

	if r := e.opts.Registerer; r != nil {
		for _, c := range []prometheus.Collector{e.rejected, e.failed, e.liveGauge, e.depth} {
			if err := r.Register(c); err != nil {
				log.Warn().Err(err).Str("pool", e.opts.NamePrefix).Msg("async metrics not registered")
			}
		}
	}
}

func (e *Executor) nextName() string {
	return e.opts.NamePrefix + strconv.FormatInt(e.seq.Add(1), 10)
}

// Submit schedules fn. The diagnostic fields of ctx are captured now and
// installed while fn runs; ctx's cancellation is not propagated. name and
// args identify the task in failure logs.
func (e *Executor) Submit(ctx context.Context, name string, fn func(context.Context) error, args ...any) error {
	info := TaskInfo{Name: name, Args: args}
	j := job{info: info, task: diag.Wrap(ctx, func(tctx context.Context) {
		if err := runGuarded(tctx, fn); err != nil {
			e.fail(tctx, info, err)
		}
	})}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	select {
	case e.queue <- j:
		return nil
	default:
	}

	if e.overflow.TryAcquire(1) {
		e.wg.Add(1)
		e.live.Add(1)
		go e.work(e.nextName(), &j, e.opts.KeepAlive)
		return nil
	}

	e.rejected.Inc()
	return ErrRejected
}

// work runs first (if any) then drains the queue. idle > 0 marks an overflow
// worker that retires after idle without work.
func (e *Executor) work(name string, first *job, idle time.Duration) {
	defer e.wg.Done()
	defer e.live.Add(-1)
	if idle > 0 {
		defer e.overflow.Release(1)
	}

	slot := &diag.Slot{}
	base := context.WithValue(e.base, workerKey{}, name)

	if first != nil {
		first.task.Run(base, slot)
	}

	if idle <= 0 {
		for j := range e.queue {
			j.task.Run(base, slot)
		}
		return
	}

	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case j, ok := <-e.queue:
			if !ok {
				return
			}
			j.task.Run(base, slot)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)
		case <-timer.C:
			return
		}
	}
}

type workerKey struct{}

// WorkerName returns the name of the worker running the task that owns ctx.
func WorkerName(ctx context.Context) string {
	s, _ := ctx.Value(workerKey{}).(string)
	return s
}

func runGuarded(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// fail reports err to the configured handler. A panic inside the handler is
// logged and dropped so it never reaches the worker loop.
func (e *Executor) fail(ctx context.Context, info TaskInfo, err error) {
	e.failed.Inc()
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(ctx).Error().
				Str("task", info.Name).
				Interface("panic", rec).
				Msg("async error handler panicked")
		}
	}()
	e.opts.OnError(ctx, info, err)
}

// LogFailure is the default ErrorHandler. It logs the task identity and its
// arguments without assuming anything about the error's type.
func LogFailure(ctx context.Context, info TaskInfo, err error) {
	ev := zerolog.Ctx(ctx).Error().
		Str("task", info.Name).
		Str("args", fmt.Sprint(info.Args)).
		Str("worker", WorkerName(ctx)).
		Err(err)
	var pe *PanicError
	if errors.As(err, &pe) {
		ev = ev.Bytes("stack", pe.Stack)
	}
	ev.Msg("async task failed")
}

// Shutdown stops accepting tasks, lets queued tasks finish and waits for all
// workers until ctx is done.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

// Live returns the number of worker goroutines currently alive.
func (e *Executor) Live() int { return int(e.live.Load()) }
