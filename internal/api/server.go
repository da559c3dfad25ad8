// Package api serves the read-only JSON API, the health probe and the
// Telegram webhook endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"readingtracker/internal/reminder"
	"readingtracker/internal/tracker"
)

const requestTimeout = 10 * time.Second

// Options configures the optional parts of the router
type Options struct {
	// Webhook receives Telegram updates on POST /telegram-webhook; nil disables the route
	Webhook http.Handler
	// Auth guards the /api routes; nil leaves them open
	Auth func(http.Handler) http.Handler
}

// Server wraps the chi router and the http.Server
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *zap.Logger
}

// NewServer builds the router with its middleware chain and registers all routes
func NewServer(addr string, tr *tracker.Tracker, reminders *reminder.Service, opts Options, logger *zap.Logger) *Server {
	r := NewRouter(tr, reminders, opts, logger)

	return &Server{
		router: r,
		logger: logger,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadTimeout:       requestTimeout,
			WriteTimeout:      requestTimeout,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// NewRouter returns the HTTP handler tree
func NewRouter(tr *tracker.Tracker, reminders *reminder.Service, opts Options, logger *zap.Logger) *chi.Mux {
	h := &handler{tracker: tr, reminders: reminders, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.CleanPath)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if opts.Webhook != nil {
		r.Method(http.MethodPost, "/telegram-webhook", opts.Webhook)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(chimw.Timeout(requestTimeout))
		if opts.Auth != nil {
			api.Use(opts.Auth)
		}

		api.Get("/books", h.listBooks)
		api.Route("/books/{id}", func(book chi.Router) {
			book.Get("/", h.getBook)
			book.Get("/sessions", h.listSessions)
			book.Get("/notes", h.listNotes)
		})
		api.Get("/stats", h.stats)
		api.Get("/reminders", h.listReminders)
	})

	return r
}

// ListenAndServe blocks until the server is closed or fails
func (s *Server) ListenAndServe() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown waits for in-flight requests up to the context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger writes one zap entry per request
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
			}
			switch {
			case ww.Status() >= 500:
				logger.Error("HTTP request", fields...)
			case ww.Status() >= 400:
				logger.Warn("HTTP request", fields...)
			default:
				logger.Debug("HTTP request", fields...)
			}
		})
	}
}
