package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/raffle-draw-backend/internal/engine"
	"github.com/DoyleJ11/raffle-draw-backend/internal/presenter"
	"github.com/DoyleJ11/raffle-draw-backend/internal/ticker"
)

var ErrNotReady = errors.New("participants not loaded")
var ErrClosed = errors.New("session closed")

type Msg interface{ isSessionMsg() }

// Loaded delivers the roster fetch result. Err is a transport failure and
// leaves the session in its error view.
type Loaded struct {
	Participants []engine.Participant
	Placeholder  string
	Err          error
}

func (Loaded) isSessionMsg() {}

// Draw requests a new draw. Reply (optional, buffered) receives the engine
// verdict: nil, engine.ErrAlreadyDrawing, engine.ErrEmptyRoster,
// engine.ErrNoEligibleWinner or ErrNotReady.
type Draw struct {
	Reply chan error
}

func (Draw) isSessionMsg() {}

type Reset struct {
	Reply chan error
}

func (Reset) isSessionMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan Status
}

func (GetState) isSessionMsg() {}

type Snapshot struct {
	Version int            `json:"version"`
	State   engine.State   `json:"state"`
	View    presenter.View `json:"view"`
}

type Status struct {
	Snapshot
	NumClients int
}

// Reveal is the suspense choreography once a winner lands.
type Reveal struct {
	NameDelay         time.Duration `yaml:"name_delay"`
	CongratulateDelay time.Duration `yaml:"congratulate_delay"`
}

func DefaultReveal() Reveal {
	return Reveal{
		NameDelay:         2500 * time.Millisecond,
		CongratulateDelay: time.Second,
	}
}

type Options struct {
	ID     string
	Clock  clockwork.Clock
	Rand   *rand.Rand
	Pacing ticker.Slowdown
	Reveal Reveal
	Assets presenter.Assets
	Logger *zap.Logger

	// IdleTimeout closes the session once it has had no clients, no
	// messages and no running draw for this long. Zero keeps it open.
	IdleTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Rand == nil {
		o.Rand = engine.NewRand(0)
	}
	if o.Pacing == (ticker.Slowdown{}) {
		o.Pacing = ticker.DefaultSlowdown()
	}
	if o.Reveal == (Reveal{}) {
		o.Reveal = DefaultReveal()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Session owns one draw session. All state is confined to the loop goroutine.
type Session struct {
	inbox chan Msg
	opts  Options
	log   *zap.Logger

	loading     bool
	loadErr     error
	placeholder string
	state       engine.State
	version     int
	clients     map[string]chan Snapshot

	task        *ticker.Task
	revealTimer clockwork.Timer
	revealNext  engine.CommandType
	idleTimer   clockwork.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)
	opts = opts.withDefaults()

	s := &Session{
		inbox:   make(chan Msg, 64), // Small buffer
		opts:    opts,
		log:     opts.Logger.With(zap.String("session_id", opts.ID)),
		loading: true,
		state:   engine.NewState(nil),
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
	}

	go s.loop()
	return s
}

// Expose the inbox so tests or WS layer can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) ID() string { return s.opts.ID }

// Done closes once the session is shutting down.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Close stops the session from any goroutine. Clients see their outbox closed.
func (s *Session) Close() { s.cancel() }

func (s *Session) loop() {
	s.touch()
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case <-s.idleC():
			s.log.Info("closing idle session", zap.Duration("idle_timeout", s.opts.IdleTimeout))
			s.shutdown()
			return

		case m := <-s.inbox:
			s.handle(m)
			if _, ok := m.(Shutdown); ok {
				return
			}
			s.touch()

		case <-s.taskTicks():
			_ = s.apply(engine.Command{Type: engine.CmdAdvance})

		case <-s.taskDone():
			s.settle()
			s.touch()

		case <-s.revealC():
			s.reveal()
			s.touch()
		}
	}
}

func (s *Session) handle(m Msg) {
	switch msg := m.(type) {
	case Loaded:
		s.load(msg)

	case Join:
		// Register client + send current snapshot immediately
		s.clients[msg.ClientID] = msg.Outbox
		s.send(msg.ClientID, msg.Outbox, s.snapshot())

	case Leave:
		if ch, ok := s.clients[msg.ClientID]; ok {
			close(ch)
			delete(s.clients, msg.ClientID)
		}

	case Draw:
		reply(msg.Reply, s.startDraw())

	case Reset:
		err := ErrNotReady
		if s.ready() {
			err = s.apply(engine.Command{Type: engine.CmdResetSession})
		}
		if err == nil {
			s.stopReveal()
		}
		reply(msg.Reply, err)

	case GetState:
		msg.Reply <- Status{Snapshot: s.snapshot(), NumClients: len(s.clients)}

	case Shutdown:
		s.shutdown()
	}
}

// touch restarts the idle countdown, or stops it while anyone is watching
// or a draw is running.
func (s *Session) touch() {
	if s.opts.IdleTimeout <= 0 {
		return
	}
	s.stopIdle()
	if len(s.clients) == 0 && s.task == nil {
		s.idleTimer = s.opts.Clock.NewTimer(s.opts.IdleTimeout)
	}
}

func (s *Session) stopIdle() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *Session) idleC() <-chan time.Time {
	if s.idleTimer == nil {
		return nil
	}
	return s.idleTimer.Chan()
}

func (s *Session) ready() bool { return !s.loading && s.loadErr == nil }

func (s *Session) load(msg Loaded) {
	s.loading = false
	s.loadErr = msg.Err
	s.placeholder = msg.Placeholder
	s.state = engine.NewState(msg.Participants)
	s.version++

	if msg.Err != nil {
		s.log.Error("roster fetch failed", zap.Error(msg.Err))
	} else {
		s.log.Info("roster loaded", zap.Int("participants", len(msg.Participants)), zap.String("placeholder", msg.Placeholder))
	}
	s.broadcast(s.snapshot())
}

func (s *Session) startDraw() error {
	if !s.ready() {
		return ErrNotReady
	}
	if err := s.apply(engine.Command{Type: engine.CmdStartDraw}); err != nil {
		return err
	}

	s.stopReveal()
	s.task = ticker.Start(s.ctx, s.opts.Clock, s.opts.Pacing)
	s.log.Info("draw started", zap.Int("eligible", len(s.state.Eligible())))
	return nil
}

func (s *Session) settle() {
	task := s.task
	s.task = nil
	if err := task.Err(); err != nil {
		// Only happens while the session is shutting down.
		return
	}

	cmd := engine.Command{Type: engine.CmdSettle}
	if winner, ok := engine.PickWinner(s.state.Participants, s.state.Winners, s.opts.Rand); ok {
		cmd.WinnerID = winner.ID
	} else {
		s.log.Warn("no winner selected, all participants have already won")
	}

	if err := s.apply(cmd); err != nil {
		s.log.Error("settle rejected", zap.Error(err))
		return
	}

	if s.state.Phase == engine.PhaseWinnerShown {
		s.log.Info("winner selected", zap.String("participant_id", s.state.Winner.ID), zap.Int("draw", len(s.state.History)))
		s.armReveal(s.opts.Reveal.NameDelay, engine.CmdRevealName)
	}
}

func (s *Session) reveal() {
	cmd := s.revealNext
	s.revealTimer = nil
	if err := s.apply(engine.Command{Type: cmd}); err != nil {
		s.log.Debug("reveal dropped", zap.String("step", string(cmd)), zap.Error(err))
		return
	}
	if cmd == engine.CmdRevealName {
		s.armReveal(s.opts.Reveal.CongratulateDelay, engine.CmdCongratulate)
	}
}

func (s *Session) armReveal(d time.Duration, next engine.CommandType) {
	s.stopReveal()
	s.revealTimer = s.opts.Clock.NewTimer(d)
	s.revealNext = next
}

func (s *Session) stopReveal() {
	if s.revealTimer != nil {
		s.revealTimer.Stop()
		s.revealTimer = nil
	}
}

// apply runs cmd through the engine; on success the version is bumped
// and every client gets a snapshot.
func (s *Session) apply(cmd engine.Command) error {
	events, next, err := engine.Apply(s.state, cmd)
	if err != nil {
		s.log.Debug("command rejected", zap.String("command", string(cmd.Type)), zap.Error(err))
		return err
	}

	s.state = next
	s.version++
	for _, e := range events {
		if e.Type != engine.EvtIndexAdvanced {
			s.log.Debug("event", zap.String("type", string(e.Type)), zap.String("participant_id", e.ParticipantID))
		}
	}
	s.broadcast(s.snapshot())
	return nil
}

func (s *Session) snapshot() Snapshot {
	view := presenter.Render(presenter.Input{
		Loading:     s.loading,
		Err:         s.loadErr,
		State:       s.state,
		Placeholder: s.placeholder,
	}, s.opts.Assets)
	return Snapshot{Version: s.version, State: s.state, View: view}
}

func (s *Session) taskTicks() <-chan ticker.Tick {
	if s.task == nil {
		return nil
	}
	return s.task.Ticks()
}

func (s *Session) taskDone() <-chan struct{} {
	if s.task == nil {
		return nil
	}
	return s.task.Done()
}

func (s *Session) revealC() <-chan time.Time {
	if s.revealTimer == nil {
		return nil
	}
	return s.revealTimer.Chan()
}

func (s *Session) shutdown() {
	if s.task != nil {
		s.task.Stop()
		s.task = nil
	}
	s.stopReveal()
	s.stopIdle()
	for id, ch := range s.clients {
		close(ch) // Tell client no more snapshots
		delete(s.clients, id)
	}
	s.cancel()
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		s.send(id, ch, snap)
	}
}

func (s *Session) send(id string, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		//ok
	default:
		// Client is slow/full - drop them.
		s.log.Warn("dropping slow client", zap.String("client_id", id))
		close(ch)
		delete(s.clients, id)
	}
}

func reply(ch chan error, err error) {
	if ch != nil {
		ch <- err
	}
}
