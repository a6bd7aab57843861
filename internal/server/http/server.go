// Package http exposes the account service over HTTP with a chi router.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/staffkeeper/internal/server/services"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 6 << 20
)

type Server struct {
	users   *services.UserService
	depts   *services.DepartmentService
	metrics *metrics.Metrics
	limiter *RateLimiter
	cookie  CookieConfig
	logger  logging.Logger
}

type Options struct {
	Users       *services.UserService
	Departments *services.DepartmentService
	Metrics     *metrics.Metrics
	// LoginLimiter throttles POST /login; nil disables throttling.
	LoginLimiter *RateLimiter
	Cookie       CookieConfig
	Logger       logging.Logger
}

func NewServer(o Options) *Server {
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	return &Server{
		users:   o.Users,
		depts:   o.Departments,
		metrics: o.Metrics,
		limiter: o.LoginLimiter,
		cookie:  o.Cookie,
		logger:  o.Logger.With("module", "http"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Post("/register", s.handleRegister)
	r.With(s.limiter.Middleware).Post("/login", s.handleLogin)
	r.Post("/token/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/profile", s.handleProfile)
	r.With(s.authMiddleware).Patch("/users/{userID}/status", s.handleUpdateStatus)

	r.Route("/departments", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListDepartments)
		r.Post("/", s.handleCreateDepartment)
	})

	return r
}

// Run serves the router on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
