package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chatpdf/internal/handlers"
	"chatpdf/internal/middleware"
	"chatpdf/internal/websocket"
	"chatpdf/web"
)

func New(
	sessionAuth *middleware.SessionAuth,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	limiter *middleware.RateLimiter,
	frontendURL string,
	log *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/static/*", web.StaticHandler("/static/"))

	r.Group(func(r chi.Router) {
		r.Use(sessionAuth.Middleware)
		r.Get("/", chatHandler.Page)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(sessionAuth.Middleware)

		r.Get("/session", chatHandler.GetSession)
		r.Delete("/session", chatHandler.ResetSession)
		r.Get("/messages", chatHandler.ListMessages)
		r.Get("/transcript", chatHandler.Transcript)

		// Model calls are rate limited per session
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/documents", chatHandler.UploadDocuments)
			r.Post("/messages", chatHandler.Ask)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
