package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/raffle-draw-backend/internal/hub"
	"github.com/DoyleJ11/raffle-draw-backend/internal/session"
	"github.com/DoyleJ11/raffle-draw-backend/internal/ws"
)

type Deps struct {
	Hub             *hub.Hub
	Source          session.Source
	ParticipantsDir string
	PlaceholdersDir string
	AllowedOrigins  []string
	Logger          *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	}).Handler)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/api/participants", ListParticipants(d.Source, log))
	r.Get("/api/random-placeholder", RandomPlaceholder(d.Source, log))
	r.Handle("/participants/*", StaticImages("/participants", d.ParticipantsDir))
	r.Handle("/placeholders/*", StaticImages("/placeholders", d.PlaceholdersDir))

	// Draw sessions
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", CreateSession(d.Hub, d.Source))
		r.Get("/{id}", GetSession(d.Hub))
		r.Delete("/{id}", DeleteSession(d.Hub))
		r.Post("/{id}/draw", StartDraw(d.Hub))
		r.Post("/{id}/reset", ResetSession(d.Hub))
	})
	r.Get("/ws", ws.Handler(d.Hub, d.AllowedOrigins, log))
	return r
}
