package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

const bearerPrefix = "bearer "

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authenticate resolves the bearer token once and stores the session in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "could not validate credentials")
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(header[len(bearerPrefix):]), s.jwtSecret)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "could not validate credentials")
			return
		}

		ctx := auth.WithSession(r.Context(), auth.Session{Email: claims.Subject, IsAdmin: claims.IsAdmin})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.SessionFrom(r.Context())
		if !ok || !sess.IsAdmin {
			writeError(w, r, http.StatusForbidden, "FORBIDDEN", "not enough permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionOf(r *http.Request) auth.Session {
	sess, _ := auth.SessionFrom(r.Context())
	return sess
}
