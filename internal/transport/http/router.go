package http

import (
	"log/slog"
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	CORSOrigins []string
	// Limiter nil: /api/auth/* без ограничений.
	Limiter    httpmw.Allower
	AuthLimit  int
	AuthWindow time.Duration
}

func NewRouter(h *Handler, verifier httpmw.Verifier, wsHandler http.HandlerFunc, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmw.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.Logging)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httpmw.HeaderRequestID},
		ExposedHeaders:   []string{httpmw.HeaderRequestID, headerNextCursor},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS endpoint, токен проверяется внутри до апгрейда
	r.Get("/ws", wsHandler)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			if cfg.Limiter != nil {
				ar.Use(httpmw.RateLimit(cfg.Limiter, "auth", cfg.AuthLimit, cfg.AuthWindow, slog.Default()))
			}
			ar.Post("/register", h.Register)
			ar.Post("/login", h.Login)
		})

		api.Route("/rooms", func(rr chi.Router) {
			rr.Get("/", h.ListRooms)

			rr.Group(func(pr chi.Router) {
				pr.Use(httpmw.Auth(verifier))
				pr.Use(middlewareChi.Timeout(30 * time.Second))

				pr.Post("/", h.CreateRoom)
				pr.Get("/my", h.MyRooms)
				pr.Post("/{id}/join", h.JoinRoom)
				pr.Get("/{id}/members", h.Members)
			})
		})

		api.Get("/messages/{roomId}", h.History)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
