// Package httpapi exposes the authentication and administration operations
// over HTTP. Credentials travel as a pair of HttpOnly cookies.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address string
	auth    *services.AuthService
	admin   *services.AdminService
	logger  logging.Logger
}

func NewServer(address string, l logging.Logger, as *services.AuthService, ads *services.AdminService) *Server {
	return &Server{
		address: address,
		logger:  l.With("module", "http_server"),
		auth:    as,
		admin:   ads,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
