package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/raffle-draw-backend/internal/hub"
	"github.com/DoyleJ11/raffle-draw-backend/internal/session"
	"github.com/DoyleJ11/raffle-draw-backend/internal/types"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Minute
)

var errUnknownType = errors.New("unknown type")

func Handler(h *hub.Hub, allowedOrigins []string, log *zap.Logger) http.HandlerFunc {
	accept := acceptOptions(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("session")
		if code == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}

		s := h.Get(r.Context(), code)
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, accept)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, outboxSize)
		clientID := uuid.NewString()
		clog := log.With(zap.String("session_id", code), zap.String("client_id", clientID))

		select {
		case s.Inbox() <- session.Join{ClientID: clientID, Outbox: out}:
		case <-s.Done():
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		}
		defer func() {
			select {
			case s.Inbox() <- session.Leave{ClientID: clientID}:
			case <-s.Done():
			}
		}()
		clog.Debug("client joined")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writeLoop(ctx, cancel, conn, out, s.Done())

		// Reader loop
		for {
			rctx, rcancel := context.WithTimeout(ctx, readTimeout)
			_, data, err := conn.Read(rctx)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("client read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: "Error", Error: "bad json"})
				continue
			}

			if err := dispatch(ctx, s, cm); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: "Error", Error: err.Error()})
			}
		}
	}
}

// writeLoop forwards snapshots until the outbox closes, the session ends,
// a write fails or ctx ends. The outbox is never closed for a Join that
// reached the session after its loop stopped.
func writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan session.Snapshot, sessionDone <-chan struct{}) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sessionDone:
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		case snap, ok := <-out:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := write(ctx, conn, types.ServerMessage{Type: "StateSnapshot", Snapshot: &snap}); err != nil {
				return
			}
		}
	}
}

func dispatch(ctx context.Context, s *session.Session, m types.ClientMessage) error {
	switch m.Type {
	case "Draw":
		return s.RequestDraw(ctx)
	case "Reset":
		return s.RequestReset(ctx)
	default:
		return errUnknownType
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// acceptOptions turns CORS-style origins ("*" or "http://host:port") into
// websocket origin patterns, which match on host only.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
			continue
		}
		opts.OriginPatterns = append(opts.OriginPatterns, o)
	}
	return opts
}
