package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/server/models"
	"github.com/avolkov/authgate/internal/server/services"
)

type contextKey string

const ctxUserKey = contextKey("user")

// userFrom returns the authenticated user placed into the request context by
// requireUser, or nil outside of a protected route.
func userFrom(r *http.Request) *models.User {
	u, _ := r.Context().Value(ctxUserKey).(*models.User)
	return u
}

// requireUser resolves the access-token cookie into an active user and stores
// it in the request context. Requests without a valid token get a 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := cookieValue(r, common.AccessTokenCookieName)

		user, err := s.auth.CurrentUser(r.Context(), token)
		if err != nil {
			respondError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin layers the admin check on top of requireUser.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := services.RequireAdmin(userFrom(r)); err != nil {
			respondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
