package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/raffle-draw-backend/internal/engine"
	"github.com/DoyleJ11/raffle-draw-backend/internal/session"
)

type HubMsg interface{ isHubMsg() }

// CreateSession starts a session under Code, or returns the one already there.
type CreateSession struct {
	Code  string
	Reply chan *session.Session
}

type GetSession struct {
	Code  string
	Reply chan *session.Session
}

type RemoveSession struct {
	Code string
}

type ShutdownHub struct{}

// sessionEnded is posted by a watcher once a session closes on its own.
type sessionEnded struct {
	code string
	s    *session.Session
}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}
func (sessionEnded) isHubMsg()  {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	defaults session.Options
	seed     uint64
	created  uint64
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewHub starts the registry. Every session it creates starts from defaults
// with its own ID and random generator; a non-zero seed makes the generators
// reproducible across runs.
func NewHub(parent context.Context, defaults session.Options, seed uint64) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := defaults.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		defaults: defaults,
		seed:     seed,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done closes after ShutdownHub or when the parent context ends.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// Create is the blocking form of CreateSession. It returns nil once the hub is closed.
func (h *Hub) Create(ctx context.Context, code string) *session.Session {
	return h.ask(ctx, func(reply chan *session.Session) HubMsg { return CreateSession{Code: code, Reply: reply} })
}

// Get returns the session registered under code, or nil.
func (h *Hub) Get(ctx context.Context, code string) *session.Session {
	return h.ask(ctx, func(reply chan *session.Session) HubMsg { return GetSession{Code: code, Reply: reply} })
}

// Remove stops the session under code. It is a no-op for unknown codes.
func (h *Hub) Remove(ctx context.Context, code string) {
	select {
	case h.inbox <- RemoveSession{Code: code}:
	case <-h.ctx.Done():
	case <-ctx.Done():
	}
}

func (h *Hub) ask(ctx context.Context, build func(chan *session.Session) HubMsg) *session.Session {
	reply := make(chan *session.Session, 1)
	select {
	case h.inbox <- build(reply):
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}

	select {
	case s := <-reply:
		return s
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if s := h.sessions[msg.Code]; s != nil {
					msg.Reply <- s
					break
				}

				h.created++
				opts := h.defaults
				opts.ID = msg.Code
				opts.Rand = engine.NewRand(0)
				if h.seed != 0 {
					opts.Rand = engine.NewRand(h.seed + h.created)
				}
				s := session.New(h.ctx, opts)
				h.sessions[msg.Code] = s
				go h.watch(msg.Code, s)
				h.log.Info("session created", zap.String("session_id", msg.Code), zap.Int("sessions", len(h.sessions)))
				msg.Reply <- s

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // May be nil

			case RemoveSession:
				if s := h.sessions[msg.Code]; s != nil {
					stop(s)
					delete(h.sessions, msg.Code)
					h.log.Info("session removed", zap.String("session_id", msg.Code))
				}

			case sessionEnded:
				// The code may already belong to a newer session.
				if h.sessions[msg.code] == msg.s {
					delete(h.sessions, msg.code)
					h.log.Info("session ended", zap.String("session_id", msg.code), zap.Int("sessions", len(h.sessions)))
				}

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		stop(s)
	}
	clear(h.sessions)
}

func (h *Hub) watch(code string, s *session.Session) {
	<-s.Done()
	select {
	case h.inbox <- sessionEnded{code: code, s: s}:
	case <-h.ctx.Done():
	}
}

func stop(s *session.Session) {
	s.Close()
}
