package ticker

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvTick(t *testing.T, task *Task) Tick {
	t.Helper()
	select {
	case tick := <-task.Ticks():
		return tick
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for tick")
		return Tick{} // unreachable
	}
}

func recvDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for task to finish")
	}
}

func TestSlowdown_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Slowdown)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Slowdown) {}, ok: true},
		{name: "zero base", mutate: func(p *Slowdown) { p.Base = 0 }},
		{name: "speeding up", mutate: func(p *Slowdown) { p.Factor = 0.9 }},
		{name: "cap below base", mutate: func(p *Slowdown) { p.Cap = p.Base / 2 }},
		{name: "no budget", mutate: func(p *Slowdown) { p.Budget = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultSlowdown()
			tc.mutate(&p)
			err := p.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			}
		})
	}
}

func TestSlowdown_NextIsNonDecreasingAndCapped(t *testing.T) {
	p := DefaultSlowdown()
	d := p.Base
	for range 100 {
		next := p.Next(d)
		require.GreaterOrEqual(t, next, d)
		require.LessOrEqual(t, next, p.Cap)
		d = next
	}
	assert.Equal(t, p.Cap, d)
}

func TestTask_StopsOnElapsedBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	policy := DefaultSlowdown()
	task := Start(ctx, clock, policy)

	var prev time.Duration
	var ticks []Tick
	for {
		tick := recvTick(t, task)
		ticks = append(ticks, tick)
		if tick.Last {
			break
		}

		require.GreaterOrEqual(t, tick.Next, prev, "interval shrank at step %d", tick.Step)
		prev = tick.Next

		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(tick.Next)
	}

	recvDone(t, task)
	require.NoError(t, task.Err())

	last := ticks[len(ticks)-1]
	assert.GreaterOrEqual(t, last.Elapsed, policy.Budget, "loop stopped early")
	assert.Less(t, last.Elapsed, policy.Budget+prev, "loop overran by more than one interval")
	assert.Zero(t, last.Next)
	assert.Equal(t, len(ticks), last.Step)
	assert.Zero(t, ticks[0].Elapsed, "first tick is immediate")
}

func TestTask_StopCancels(t *testing.T) {
	clock := clockwork.NewFakeClock()
	task := Start(context.Background(), clock, DefaultSlowdown())

	_ = recvTick(t, task)
	task.Stop()

	recvDone(t, task)
	assert.ErrorIs(t, task.Err(), context.Canceled)
}

func TestTask_ParentContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := Start(ctx, clockwork.NewFakeClock(), DefaultSlowdown())

	cancel()
	recvDone(t, task)
	assert.ErrorIs(t, task.Err(), context.Canceled)
}
