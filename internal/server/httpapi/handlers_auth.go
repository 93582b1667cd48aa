package httpapi

import (
	"net/http"
	"time"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/server/models"
	"github.com/avolkov/authgate/internal/server/services"
)

// userView is the public projection of a user record. The password hash never
// leaves the service.
type userView struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	IsActive  bool       `json:"is_active"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}

	user, pair, err := s.auth.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusCreated, newUserView(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}

	user, pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)

	user, pair, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		clearSessionCookies(w)
		respondError(w, err)
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)

	if err := s.auth.Logout(r.Context(), token); err != nil {
		respondError(w, err)
		return
	}

	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserView(userFrom(r)))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}

	updated, err := s.auth.UpdateProfile(r.Context(), userFrom(r), req.toUpdate())
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserView(updated))
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.DeleteAccount(r.Context(), userFrom(r)); err != nil {
		respondError(w, err)
		return
	}

	clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
