package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Messages      *MessageHandler
	Notifications *NotificationHandler
	TaskDrafts    *TaskDraftHandler
	Users         *UserHandler

	// WebSocket serves GET /ws
	WebSocket http.HandlerFunc

	// Gatherer backs GET /metrics; nil leaves the route out
	Gatherer prometheus.Gatherer

	CORSOrigins []string

	// AccessLog enables chi's request logger
	AccessLog bool
}

// NewRouter builds the chi router with middleware, REST routes, the socket
// endpoint and metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	if cfg.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", HealthCheck)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HealthCheck)

		r.Route("/messages", func(r chi.Router) {
			// notes must come before the generic routes
			r.Get("/notes/{username}", cfg.Messages.GetNotes)
			r.Post("/notes", cfg.Messages.SaveNote)

			r.Get("/", cfg.Messages.GetMessages)
			r.Post("/", cfg.Messages.SendMessage)
			r.Put("/{messageId}/edit", cfg.Messages.EditMessage)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/unread/{owner}", cfg.Notifications.UnreadCount)
			r.Post("/mark-read", cfg.Notifications.MarkRead)
			r.Get("/{owner}", cfg.Notifications.List)
		})

		r.Route("/task-drafts", func(r chi.Router) {
			r.Get("/{owner}", cfg.TaskDrafts.Get)
			r.Post("/", cfg.TaskDrafts.Save)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/statuses", cfg.Users.Statuses)
			r.Get("/{username}/status", cfg.Users.Status)
		})
	})

	return r
}
