package idle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrStopped is returned by Do once Run has returned.
	ErrStopped = errors.New("idle: driver stopped")

	// ErrRunning is returned by a second concurrent call to Run.
	ErrRunning = errors.New("idle: driver already running")
)

// Worker is the interruptible work a Driver runs.
type Worker interface {
	// Tick does work until d runs out. done reports that no work is left.
	Tick(d Deadline) (done bool, err error)
	// Pending reports whether there is work to do.
	Pending() bool
}

// Driver runs a Worker on a single goroutine. Other goroutines hand it calls
// through Do, so the worker itself needs no locking.
type Driver struct {
	w        Worker
	slice    time.Duration
	interval time.Duration
	logger   *slog.Logger
	onError  func(error)

	ingress chan task
	mu      sync.Mutex
	running bool
	stopped chan struct{}
	ticks   int64
}

type task struct {
	fn   func()
	done chan struct{}
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithSlice sets the budget of each tick. Defaults to 8ms.
func WithSlice(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.slice = d
		}
	}
}

// WithInterval sets the pause between ticks while work is pending.
// Defaults to 16ms.
func WithInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) DriverOption {
	return func(dr *Driver) { dr.logger = l }
}

// WithErrorHandler receives the errors returned by the worker's Tick.
func WithErrorHandler(fn func(error)) DriverOption {
	return func(dr *Driver) { dr.onError = fn }
}

// NewDriver creates a Driver for w. Nothing runs until Run is called.
func NewDriver(w Worker, opts ...DriverOption) *Driver {
	d := &Driver{
		w:        w,
		slice:    8 * time.Millisecond,
		interval: 16 * time.Millisecond,
		ingress:  make(chan task),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Run drives the worker until ctx is cancelled. It ticks right after every
// call handed in through Do, then once per interval while work is pending.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrRunning
	}
	select {
	case <-d.stopped:
		d.mu.Unlock()
		return ErrStopped
	default:
	}
	d.running = true
	d.mu.Unlock()
	defer close(d.stopped)

	t := time.NewTicker(d.interval)
	defer t.Stop()

	d.logger.Debug("idle: driver started", "slice", d.slice, "interval", d.interval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("idle: driver stopped", "ticks", d.ticks)
			return ctx.Err()
		case tk := <-d.ingress:
			tk.fn()
			close(tk.done)
			d.tick()
		case <-t.C:
			d.tick()
		}
	}
}

func (d *Driver) tick() {
	if !d.w.Pending() {
		return
	}
	d.ticks++
	if _, err := d.w.Tick(Budget(d.slice)); err != nil {
		d.logger.Warn("idle: tick failed", "error", err)
		if d.onError != nil {
			d.onError(err)
		}
	}
}

// Do runs fn on the driver goroutine and waits for it to return.
func (d *Driver) Do(ctx context.Context, fn func()) error {
	tk := task{fn: fn, done: make(chan struct{})}
	select {
	case d.ingress <- tk:
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-tk.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle waits until the worker has no pending work.
func (d *Driver) Settle(ctx context.Context) error {
	for {
		var pending bool
		if err := d.Do(ctx, func() { pending = d.w.Pending() }); err != nil {
			return err
		}
		if !pending {
			return nil
		}
		select {
		case <-time.After(d.interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done is closed when Run returns.
func (d *Driver) Done() <-chan struct{} { return d.stopped }
