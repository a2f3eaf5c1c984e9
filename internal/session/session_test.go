package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/raffle-draw-backend/internal/engine"
	"github.com/DoyleJ11/raffle-draw-backend/internal/presenter"
	"github.com/DoyleJ11/raffle-draw-backend/internal/roster"
	"github.com/DoyleJ11/raffle-draw-backend/internal/ticker"
)

var fastPacing = ticker.Slowdown{
	Base:   10 * time.Millisecond,
	Factor: 2,
	Cap:    40 * time.Millisecond,
	Budget: 100 * time.Millisecond,
}

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvClosed(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("expected outbox to be closed within %v", within)
		}
	}
}

func people(ids ...string) []engine.Participant {
	ps := make([]engine.Participant, 0, len(ids))
	for _, id := range ids {
		ps = append(ps, engine.Participant{ID: id, Name: id, Image: "/" + id + ".jpg"})
	}
	return ps
}

func newTestSession(t *testing.T, ctx context.Context) (*Session, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s := New(ctx, Options{
		ID:     "test",
		Clock:  clock,
		Rand:   engine.NewRand(1),
		Pacing: fastPacing,
		Reveal: Reveal{NameDelay: 2500 * time.Millisecond, CongratulateDelay: time.Second},
		Assets: presenter.Assets{Base: "http://localhost:3001"},
	})
	return s, clock
}

func status(t *testing.T, s *Session) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := s.State(ctx)
	require.NoError(t, err)
	return st
}

// driveDraw advances the fake clock in small steps until the session leaves
// the drawing phase, returning the fake time the draw took.
func driveDraw(t *testing.T, ctx context.Context, clock *clockwork.FakeClock, s *Session) time.Duration {
	t.Helper()
	start := clock.Now()
	for range 1000 {
		wctx, cancel := context.WithTimeout(ctx, time.Second)
		require.NoError(t, clock.BlockUntilContext(wctx, 1))
		cancel()

		if status(t, s).State.Phase != engine.PhaseDrawing {
			return clock.Since(start)
		}
		clock.Advance(10 * time.Millisecond)
	}
	t.Fatalf("draw never settled")
	return 0
}

func TestSession_JoinGetsLoadingSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newTestSession(t, ctx)

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, first.Version)
	assert.Equal(t, presenter.KindLoading, first.View.Kind)

	assert.ErrorIs(t, s.RequestDraw(ctx), ErrNotReady)

	s.Inbox() <- Loaded{Participants: people("a", "b"), Placeholder: "p.jpg"}
	next := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, presenter.KindReady, next.View.Kind)
	assert.Equal(t, "http://localhost:3001/placeholders/p.jpg", next.View.Image)
}

func TestSession_DrawSelectsWinnerAndReveals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, clock := newTestSession(t, ctx)
	s.Inbox() <- Loaded{Participants: people("a", "b", "c")}

	require.NoError(t, s.RequestDraw(ctx))
	assert.ErrorIs(t, s.RequestDraw(ctx), engine.ErrAlreadyDrawing, "re-entrant draw must be rejected")

	took := driveDraw(t, ctx, clock, s)
	assert.GreaterOrEqual(t, took, fastPacing.Budget)
	assert.LessOrEqual(t, took, fastPacing.Budget+fastPacing.Cap)

	st := status(t, s)
	require.Equal(t, engine.PhaseWinnerShown, st.State.Phase)
	require.NotNil(t, st.State.Winner)
	assert.True(t, st.State.Winners[st.State.Winner.ID])
	assert.False(t, st.State.NameRevealed)
	assert.Equal(t, presenter.KindWinnerShown, st.View.Kind)
	assert.NotZero(t, st.State.CurrentIndex)

	// suspense beat: the name shows only after the reveal delay
	clock.Advance(2 * time.Second)
	assert.False(t, status(t, s).State.NameRevealed)

	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return status(t, s).State.NameRevealed }, time.Second, 5*time.Millisecond)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return status(t, s).State.Congratulated }, time.Second, 5*time.Millisecond)

	st = status(t, s)
	assert.Equal(t, presenter.Congratulations, st.View.Banner)
	assert.True(t, st.View.Confetti)
}

func TestSession_ExhaustedRosterRejectsDraw(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, clock := newTestSession(t, ctx)
	s.Inbox() <- Loaded{Participants: people("solo")}

	require.NoError(t, s.RequestDraw(ctx))
	driveDraw(t, ctx, clock, s)
	before := status(t, s)
	require.Equal(t, "solo", before.State.Winner.ID)

	err := s.RequestDraw(ctx)
	assert.ErrorIs(t, err, engine.ErrNoEligibleWinner)

	after := status(t, s)
	assert.Equal(t, before.Version, after.Version, "rejected draw must not change state")
	assert.False(t, after.View.DrawEnabled)
}

func TestSession_EmptyRoster(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newTestSession(t, ctx)
	s.Inbox() <- Loaded{}

	assert.ErrorIs(t, s.RequestDraw(ctx), engine.ErrEmptyRoster)
	assert.Equal(t, presenter.KindEmptyRoster, status(t, s).View.Kind)
}

func TestSession_LoadErrorShowsErrorView(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newTestSession(t, ctx)
	s.Inbox() <- Loaded{Err: errors.New("Failed to fetch participants")}

	st := status(t, s)
	assert.Equal(t, presenter.KindError, st.View.Kind)
	assert.ErrorIs(t, s.RequestDraw(ctx), ErrNotReady)
}

func TestSession_NewDrawClearsPreviousWinner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, clock := newTestSession(t, ctx)
	s.Inbox() <- Loaded{Participants: people("a", "b", "c")}

	require.NoError(t, s.RequestDraw(ctx))
	driveDraw(t, ctx, clock, s)
	first := status(t, s).State.Winner.ID

	require.NoError(t, s.RequestDraw(ctx))
	st := status(t, s)
	assert.Equal(t, engine.PhaseDrawing, st.State.Phase)
	assert.Nil(t, st.State.Winner)
	assert.True(t, st.State.Winners[first])

	driveDraw(t, ctx, clock, s)
	st = status(t, s)
	assert.NotEqual(t, first, st.State.Winner.ID)
	assert.False(t, st.State.NameRevealed)
	assert.Len(t, st.State.History, 2)
}

func TestSession_Reset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, clock := newTestSession(t, ctx)
	s.Inbox() <- Loaded{Participants: people("solo")}

	require.NoError(t, s.RequestDraw(ctx))
	driveDraw(t, ctx, clock, s)
	require.NoError(t, s.RequestReset(ctx))

	st := status(t, s)
	assert.Empty(t, st.State.Winners)
	assert.NoError(t, s.RequestDraw(ctx))
}

func TestSession_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newTestSession(t, ctx)

	clientOut := make(chan Snapshot, 1)
	s.Inbox() <- Join{ClientID: "ch1", Outbox: clientOut}
	s.Inbox() <- Loaded{Participants: people("a", "b")}

	st := status(t, s)
	if st.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", st.NumClients)
	}
}

func TestSession_ShutdownClosesClients(t *testing.T) {
	s, _ := newTestSession(t, context.Background())

	out := make(chan Snapshot, 2)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 500*time.Millisecond) // drain join snapshot

	s.Inbox() <- Shutdown{}
	recvClosed(t, out, 500*time.Millisecond)

	assert.ErrorIs(t, s.RequestDraw(context.Background()), ErrClosed)
}

type stubSource struct {
	participants []engine.Participant
	placeholder  string
	err          error
	phErr        error
}

func (s stubSource) Participants(context.Context) ([]engine.Participant, error) {
	return s.participants, s.err
}

func (s stubSource) RandomPlaceholder(context.Context) (string, error) {
	return s.placeholder, s.phErr
}

func TestSession_Fetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("roster and placeholder", func(t *testing.T) {
		s, _ := newTestSession(t, ctx)
		s.Fetch(ctx, stubSource{participants: people("a", "b"), placeholder: "p.jpg"})

		st := status(t, s)
		assert.Equal(t, presenter.KindReady, st.View.Kind)
		assert.Len(t, st.State.Participants, 2)
	})

	t.Run("placeholder missing is not fatal", func(t *testing.T) {
		s, _ := newTestSession(t, ctx)
		s.Fetch(ctx, stubSource{participants: people("a"), phErr: errors.New("404")})

		st := status(t, s)
		assert.Equal(t, presenter.KindReady, st.View.Kind)
		assert.Empty(t, st.View.Image)
	})

	t.Run("roster failure", func(t *testing.T) {
		s, _ := newTestSession(t, ctx)
		s.Fetch(ctx, stubSource{err: errors.New("connection refused")})

		st := status(t, s)
		assert.Equal(t, presenter.KindError, st.View.Kind)
		assert.Equal(t, presenter.FetchFailedMessage, st.View.Message)
	})

	t.Run("directory failure keeps the path private", func(t *testing.T) {
		s, _ := newTestSession(t, ctx)
		missing := filepath.Join(t.TempDir(), "private-participants")
		s.Fetch(ctx, roster.NewDirectory(missing, missing))

		st := status(t, s)
		assert.Equal(t, presenter.KindError, st.View.Kind)
		assert.Equal(t, presenter.FetchFailedMessage, st.View.Message)
		assert.NotContains(t, st.View.Message, missing)
	})
}

func TestSession_IdleTimeoutWaitsForClientsToLeave(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	s := New(ctx, Options{ID: "idle", Clock: clock, Pacing: fastPacing, IdleTimeout: time.Minute})

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	recvSnapshot(t, out, time.Second)
	assert.Equal(t, 1, status(t, s).NumClients)

	clock.Advance(2 * time.Minute)
	select {
	case <-s.Done():
		t.Fatalf("session with a client was closed")
	case <-time.After(50 * time.Millisecond):
	}

	s.Inbox() <- Leave{ClientID: "c1"}
	recvClosed(t, out, time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Minute)
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("idle session still running")
	}
}
