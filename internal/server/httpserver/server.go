// Package httpserver exposes the account and license review flows over a
// JSON HTTP API.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/models"
	"github.com/dmitrijs2005/rentdesk/internal/server/services"
	"github.com/dmitrijs2005/rentdesk/internal/server/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// UserService is the account surface used by the handlers.
type UserService interface {
	Register(ctx context.Context, email, password, language string) (*services.RegisterResult, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (string, error)
	AdminLogin(ctx context.Context, email, password string) (string, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id string) error
	DeleteUserByEmail(ctx context.Context, email string) error
}

// LicenseService is the license review surface used by the handlers.
type LicenseService interface {
	Upload(ctx context.Context, email string, in services.Upload) (*models.License, error)
	MyLicenses(ctx context.Context, email string) ([]models.License, error)
	ListLicensesWithUsers(ctx context.Context) ([]models.LicenseWithUser, error)
	ListGrouped(ctx context.Context) ([]models.UserLicenses, error)
	GetLicense(ctx context.Context, id string) (*services.LicenseDetails, error)
	UpdateStatus(ctx context.Context, id string, status models.LicenseStatus, notes *string) (*models.License, error)
	UpdateStatusForUser(ctx context.Context, userID string, status models.LicenseStatus, notes *string) ([]models.License, error)
	OpenFile(ctx context.Context, bucket, name string) (*storage.Object, error)
}

type Server struct {
	address   string
	users     UserService
	licenses  LicenseService
	metrics   http.Handler
	logger    logging.Logger
	jwtSecret []byte
	handler   http.Handler
}

// NewServer builds the server and its router. metrics may be nil, in which
// case /metrics is not mounted.
func NewServer(addr string, l logging.Logger, us UserService, ls LicenseService, metrics http.Handler, secretKey string) *Server {
	s := &Server{
		address:   addr,
		logger:    l.With("module", "http_server"),
		users:     us,
		licenses:  ls,
		metrics:   metrics,
		jwtSecret: []byte(secretKey),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)
		r.Post("/auth/admin/login", s.adminLogin)
		r.Post("/auth/verify-email", s.verifyEmail)
		r.Post("/auth/resend-verification", s.resendVerification)

		// referenced from <img> tags; stored names are random
		r.Get("/auth/files/{bucket}/{name}", s.serveFile)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/upload-license", s.uploadLicense)
			r.Get("/me", s.me)
			r.Get("/my-license", s.myLicenses)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/users", s.listUsers)
				r.Delete("/users/{id}", s.deleteUser)
				r.Delete("/users/by-email/{email}", s.deleteUserByEmail)
				r.Put("/users/{id}/driver-licenses", s.reviewUserLicenses)

				r.Get("/driver-licenses", s.listLicenses)
				r.Get("/driver-licenses/{id}", s.getLicense)
				r.Put("/driver-licenses/{id}", s.reviewLicense)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
