package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/libassist/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/libassist/internal/api/middlewares"
	"github.com/markdave123-py/libassist/internal/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// Routes groups the handlers the router mounts.
type Routes struct {
	Chat      *handlers.ChatHandler
	Documents *handlers.DocumentHandler
	Resources *handlers.ResourceHandler
	Sync      *handlers.SyncHandler
}

// NewRouter builds the chi router with every API route.
func NewRouter(rt Routes, jwtSecret string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout + 30*time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		api.Get("/resources", rt.Resources.ListResources)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(jwtSecret))
			protected.Post("/conversations", rt.Chat.CreateConversation)
			protected.Get("/conversations", rt.Chat.ListConversations)
			protected.Get("/conversations/{id}/messages", rt.Chat.ListMessages)
			protected.Post("/conversations/{id}/messages", rt.Chat.SendMessage)
			protected.Post("/search", rt.Resources.Search)

			protected.Route("/admin", func(admin chi.Router) {
				admin.Use(appMiddleware.AdminOnly)
				admin.Post("/documents", rt.Documents.ProcessText)
				admin.Post("/documents/upload", rt.Documents.UploadDocument)
				admin.Get("/documents", rt.Documents.ListDocuments)
				admin.Post("/sync", rt.Sync.RunSync)
				admin.Get("/sync", rt.Sync.Status)
				admin.Get("/analytics", rt.Resources.Analytics)
			})
		})
	})

	return r
}

func NewServer(addr string, handler http.Handler, log logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
