package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/toasterreels/reels/internal/httputil"
	"github.com/toasterreels/reels/internal/ratelimit"
	"github.com/toasterreels/reels/internal/reel"
	"github.com/toasterreels/reels/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Handler *reel.Handler
	Pinger  Pinger // nil in the local variant
	BaseURL string
	// Extra hosts the feed page may load media from: the storage
	// endpoint for the remote variant, the sample video host for the
	// local one.
	MediaHosts []string
}

type Server struct {
	router chi.Router
	pinger Pinger
	reels  *reel.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:    cfg.BaseURL,
		MediaHosts: cfg.MediaHosts,
	}))

	s := &Server{router: r, pinger: cfg.Pinger, reels: cfg.Handler}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	s.router.Get("/", s.reels.FeedPage)
	s.router.Get("/api/feed", s.reels.List)
	s.router.Get("/api/feed/ws", s.reels.Stream)
	s.router.Get("/api/watch/{id}", s.reels.Watch)

	mutationLimiter := ratelimit.NewLimiter(2, 10)
	s.router.Group(func(r chi.Router) {
		r.Use(mutationLimiter.Middleware)
		r.Post("/api/reels/{id}/like", s.reels.Like)
		r.Post("/api/reels/upload", s.reels.Upload)
		if s.reels.Local() {
			r.Post("/api/feed/extend", s.reels.Extend)
		} else {
			r.Post("/api/reels", s.reels.Create)
			r.Patch("/api/reels/{id}", s.reels.Complete)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
