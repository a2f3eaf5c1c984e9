package session

import "context"

// RequestDraw asks for a draw and waits for the verdict.
func (s *Session) RequestDraw(ctx context.Context) error {
	return s.request(ctx, func(reply chan error) Msg { return Draw{Reply: reply} })
}

// RequestReset forgets every winner of the session.
func (s *Session) RequestReset(ctx context.Context) error {
	return s.request(ctx, func(reply chan error) Msg { return Reset{Reply: reply} })
}

// State returns the current status snapshot.
func (s *Session) State(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := s.post(ctx, GetState{Reply: reply}); err != nil {
		return Status{}, err
	}

	select {
	case st := <-reply:
		return st, nil
	case <-s.ctx.Done():
		return Status{}, ErrClosed
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (s *Session) request(ctx context.Context, build func(chan error) Msg) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, build(reply)); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) post(ctx context.Context, msg Msg) error {
	select {
	case s.inbox <- msg:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
