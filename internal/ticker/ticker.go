// Package ticker runs the draw animation clock: a repeating timer whose
// interval grows geometrically until a total time budget is spent.
package ticker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrInvalidPolicy = errors.New("invalid slowdown policy")

// Slowdown describes how the animation decelerates.
type Slowdown struct {
	Base   time.Duration `yaml:"base_interval"`
	Factor float64       `yaml:"slowdown_factor"`
	Cap    time.Duration `yaml:"max_interval"`
	Budget time.Duration `yaml:"budget"`
}

func DefaultSlowdown() Slowdown {
	return Slowdown{
		Base:   50 * time.Millisecond,
		Factor: 1.1,
		Cap:    500 * time.Millisecond,
		Budget: 8 * time.Second,
	}
}

func (p Slowdown) Validate() error {
	switch {
	case p.Base <= 0:
		return fmt.Errorf("%w: base interval must be positive, got %v", ErrInvalidPolicy, p.Base)
	case p.Factor < 1:
		return fmt.Errorf("%w: slowdown factor must be >= 1, got %v", ErrInvalidPolicy, p.Factor)
	case p.Cap < p.Base:
		return fmt.Errorf("%w: max interval %v is below base interval %v", ErrInvalidPolicy, p.Cap, p.Base)
	case p.Budget <= 0:
		return fmt.Errorf("%w: budget must be positive, got %v", ErrInvalidPolicy, p.Budget)
	}
	return nil
}

// Next returns the interval that follows d. It never shrinks and never exceeds Cap.
func (p Slowdown) Next(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * p.Factor)
	if next < d {
		next = d
	}
	return min(next, p.Cap)
}

// Tick is one animation step.
type Tick struct {
	Step    int
	Elapsed time.Duration
	// Next is the wait before the following tick; zero on the last one.
	Next time.Duration
	Last bool
}

// Task is a running slowdown schedule. Receive from Ticks until Done closes.
type Task struct {
	ticks  chan Tick
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Start begins delivering ticks immediately. The caller must keep receiving
// from Ticks or Stop the task.
func Start(ctx context.Context, clock clockwork.Clock, policy Slowdown) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		ticks:  make(chan Tick),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go t.run(ctx, clock, policy)
	return t
}

func (t *Task) Ticks() <-chan Tick { return t.ticks }

// Done closes after the last tick has been received or the task was stopped.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Stop() { t.cancel() }

// Err is nil for a task that spent its budget and context.Canceled for a stopped one.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) run(ctx context.Context, clock clockwork.Clock, policy Slowdown) {
	defer t.cancel()

	start := clock.Now()
	interval := policy.Base

	for step := 1; ; step++ {
		elapsed := clock.Since(start)
		last := elapsed >= policy.Budget

		tick := Tick{Step: step, Elapsed: elapsed, Last: last}
		if !last {
			interval = policy.Next(interval)
			tick.Next = interval
		}

		select {
		case t.ticks <- tick:
		case <-ctx.Done():
			t.finish(ctx.Err())
			return
		}

		if last {
			t.finish(nil)
			return
		}

		timer := clock.NewTimer(interval)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			t.finish(ctx.Err())
			return
		}
	}
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}
