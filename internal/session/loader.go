package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/raffle-draw-backend/internal/engine"
)

// Source is wherever a session gets its roster from.
type Source interface {
	Participants(ctx context.Context) ([]engine.Participant, error)
	RandomPlaceholder(ctx context.Context) (string, error)
}

// Fetch loads the roster and one placeholder from src and hands them to the
// session. A placeholder failure is logged and leaves the placeholder empty;
// a roster failure puts the session in its error view. Nothing is retried.
func (s *Session) Fetch(ctx context.Context, src Source) {
	placeholder, err := src.RandomPlaceholder(ctx)
	if err != nil {
		s.log.Warn("no placeholder image", zap.Error(err))
		placeholder = ""
	}

	var msg Loaded
	participants, err := src.Participants(ctx)
	if err != nil {
		msg.Err = fmt.Errorf("failed to fetch participants: %w", err)
	} else {
		msg.Participants = participants
		msg.Placeholder = placeholder
	}

	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
	case <-ctx.Done():
	}
}
