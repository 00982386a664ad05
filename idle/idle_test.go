package idle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSteps(t *testing.T) {
	s := Steps(3)
	var got []time.Duration
	for range 4 {
		got = append(got, s.TimeRemaining())
	}
	if got[0] == 0 || got[1] == 0 {
		t.Errorf("first checks: got %v, want budget left", got[:2])
	}
	if got[2] != 0 || got[3] != 0 {
		t.Errorf("third check onwards: got %v, want 0", got[2:])
	}
	if s.Left() != 0 {
		t.Errorf("Left: got %d, want 0", s.Left())
	}
}

func TestBudget(t *testing.T) {
	if r := Budget(time.Hour).TimeRemaining(); r <= 59*time.Minute {
		t.Errorf("fresh budget: got %v", r)
	}
	if r := Budget(-time.Second).TimeRemaining(); r != 0 {
		t.Errorf("expired budget: got %v, want 0", r)
	}
	if Unbounded.TimeRemaining() < time.Hour {
		t.Error("Unbounded should never run out")
	}
}

// counter needs units Tick calls worth of work, one unit per Tick.
type counter struct {
	units atomic.Int32
	ticks atomic.Int32
	fail  bool
}

func (c *counter) Pending() bool { return c.units.Load() > 0 }

func (c *counter) Tick(Deadline) (bool, error) {
	c.ticks.Add(1)
	if c.fail {
		c.units.Store(0)
		return true, errors.New("boom")
	}
	return c.units.Add(-1) <= 0, nil
}

func startDriver(t *testing.T, w Worker, opts ...DriverOption) *Driver {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDriver(w, append([]DriverOption{WithInterval(time.Millisecond)}, opts...)...)
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	return d
}

func TestDriver_DoAndSettle(t *testing.T) {
	w := &counter{}
	d := startDriver(t, w)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.Do(ctx, func() { w.units.Store(5) }); err != nil {
		t.Fatal(err)
	}
	if err := d.Settle(ctx); err != nil {
		t.Fatal(err)
	}
	if got := w.ticks.Load(); got < 5 {
		t.Errorf("ticks: got %d, want >= 5", got)
	}
}

func TestDriver_ErrorHandler(t *testing.T) {
	w := &counter{fail: true}
	errs := make(chan error, 1)
	d := startDriver(t, w, WithErrorHandler(func(err error) {
		select {
		case errs <- err:
		default:
		}
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.Do(ctx, func() { w.units.Store(1) }); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errs:
		if err.Error() != "boom" {
			t.Errorf("error: got %v, want boom", err)
		}
	case <-ctx.Done():
		t.Fatal("error handler not called")
	}
}

func TestDriver_DoAfterStop(t *testing.T) {
	d := NewDriver(&counter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
	if err := d.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Do: got %v, want ErrStopped", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("second Run: got %v, want ErrStopped", err)
	}
}
