package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/raffle-draw-backend/internal/engine"
	"github.com/DoyleJ11/raffle-draw-backend/internal/hub"
	"github.com/DoyleJ11/raffle-draw-backend/internal/roster"
	"github.com/DoyleJ11/raffle-draw-backend/internal/session"
	"github.com/DoyleJ11/raffle-draw-backend/internal/types"
)

const (
	msgParticipantsFailed = "Failed to load participant data"
	msgPlaceholderFailed  = "Failed to load placeholder images"
	msgNoPlaceholder      = "No placeholder images available"
	msgSessionNotFound    = "session not found"
)

func ListParticipants(src session.Source, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participants, err := src.Participants(r.Context())
		if err != nil {
			log.Error("error reading participant photos", zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgParticipantsFailed)
			return
		}
		writeJSON(w, http.StatusOK, participants)
	}
}

func RandomPlaceholder(src session.Source, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := src.RandomPlaceholder(r.Context())
		switch {
		case errors.Is(err, roster.ErrNoPlaceholder):
			writeError(w, http.StatusNotFound, msgNoPlaceholder)
			return
		case err != nil:
			log.Error("error reading placeholder images", zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgPlaceholderFailed)
			return
		}
		writeJSON(w, http.StatusOK, types.PlaceholderResponse{Image: name})
	}
}

// StaticImages serves files from dir. Directories are never listed.
func StaticImages(prefix, dir string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + strings.TrimPrefix(r.URL.Path, prefix))
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func CreateSession(h *hub.Hub, src session.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := uuid.NewString()
		s := h.Create(r.Context(), code)
		if s == nil {
			writeError(w, http.StatusServiceUnavailable, "failed to create session")
			return
		}

		// The roster loads in the background; clients watch the loading view.
		go s.Fetch(context.Background(), src)

		writeJSON(w, http.StatusCreated, types.SessionCreated{ID: code})
	}
}

func GetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := lookup(w, r, h)
		if s == nil {
			return
		}
		st, err := s.State(r.Context())
		if err != nil {
			writeError(w, http.StatusNotFound, msgSessionNotFound)
			return
		}
		writeJSON(w, http.StatusOK, st.Snapshot)
	}
}

func StartDraw(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := lookup(w, r, h)
		if s == nil {
			return
		}
		if err := s.RequestDraw(r.Context()); err != nil {
			writeError(w, drawStatus(err), err.Error())
			return
		}

		st, err := s.State(r.Context())
		if err != nil {
			writeError(w, http.StatusNotFound, msgSessionNotFound)
			return
		}
		writeJSON(w, http.StatusAccepted, st.Snapshot)
	}
}

func ResetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := lookup(w, r, h)
		if s == nil {
			return
		}
		if err := s.RequestReset(r.Context()); err != nil {
			writeError(w, drawStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lookup(w, r, h) == nil {
			return
		}
		h.Remove(r.Context(), chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// drawStatus maps a rejected draw or reset onto an HTTP status.
func drawStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrAlreadyDrawing), errors.Is(err, session.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEmptyRoster), errors.Is(err, engine.ErrNoEligibleWinner):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrClosed):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func lookup(w http.ResponseWriter, r *http.Request, h *hub.Hub) *session.Session {
	s := h.Get(r.Context(), chi.URLParam(r, "id"))
	if s == nil {
		writeError(w, http.StatusNotFound, msgSessionNotFound)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}
