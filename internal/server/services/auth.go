// Package services contains server-side business logic. This file implements
// AuthService, the session manager: registration, login, identity resolution,
// refresh-token rotation and logout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/dbx"
	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/auth"
	"github.com/avolkov/authgate/internal/server/models"
	"github.com/avolkov/authgate/internal/server/repositories/repomanager"
	"github.com/avolkov/authgate/internal/server/sessions"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token
// together with their lifetimes, for the transport to hand to the client.
type TokenPair struct {
	AccessToken      string
	AccessExpiresIn  time.Duration
	RefreshToken     string
	RefreshExpiresIn time.Duration
}

// RegisterInput carries the validated registration fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthService orchestrates the user directory, the token codec and the
// session store. It holds no cross-request state of its own; correctness
// relies on the stores' per-key atomicity.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    sessions.Store
	tokens      *auth.Manager
	logger      logging.Logger
}

// NewAuthService constructs an AuthService from its collaborators.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, store sessions.Store, tokens *auth.Manager, logger logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		sessions:    store,
		tokens:      tokens,
		logger:      logger,
	}
}

// Register creates a new active user with the "user" role and opens a session
// for it. A taken email yields common.ErrAlreadyExists.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, *TokenPair, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, common.ErrInternal
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if _, err := repo.FindByEmail(ctx, in.Email); err == nil {
			return common.ErrAlreadyExists
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		created, err := repo.Create(ctx, &models.User{
			Email:        in.Email,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			PasswordHash: hash,
			IsActive:     true,
			Role:         models.RoleUser,
		})
		if err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, pair, nil
}

// Login verifies the credentials and opens a session. An unknown email yields
// common.ErrNotFound; a wrong password or a disabled account yields
// common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.repomanager.Users(s.db).FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, nil, common.ErrInvalidCredentials
	}

	if !user.IsActive {
		// disabled accounts fail with the same kind as a wrong password so
		// the response does not reveal account state
		return nil, nil, common.ErrInvalidCredentials
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return user, pair, nil
}

// CurrentUser resolves the authenticated identity from an access token. Every
// protected operation depends on this gate. A missing, undecodable,
// wrong-type or subject-less token, as well as an unknown or inactive user,
// yields common.ErrUnauthenticated.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, common.ErrUnauthenticated
	}

	claims, err := s.tokens.Decode(accessToken)
	if err != nil || claims.TokenType != auth.TokenTypeAccess {
		return nil, common.ErrUnauthenticated
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, common.ErrUnauthenticated
	}

	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrUnauthenticated
	}

	return user, nil
}

// Refresh exchanges a live refresh token for a brand-new token pair, rotating
// the session. Rotation is single-use: the old token is deleted before the
// new pair is issued, and the delete result decides eligibility, so two
// concurrent refreshes of the same token cannot both succeed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, common.ErrUnauthenticated
	}

	stored, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrUnauthenticated
		}
		return nil, nil, err
	}

	userID, convErr := strconv.ParseInt(stored, 10, 64)
	if convErr != nil {
		s.logger.Warn(ctx, "corrupt session entry dropped")
		_, _ = s.sessions.Delete(ctx, refreshToken)
		return nil, nil, common.ErrUnauthenticated
	}

	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_, _ = s.sessions.Delete(ctx, refreshToken)
			return nil, nil, common.ErrUnauthenticated
		}
		return nil, nil, err
	}
	if !user.IsActive {
		_, _ = s.sessions.Delete(ctx, refreshToken)
		return nil, nil, common.ErrUnauthenticated
	}

	removed, err := s.sessions.Delete(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if !removed {
		// a concurrent refresh won the rotation
		return nil, nil, common.ErrUnauthenticated
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "session rotated", "user_id", user.ID)
	return user, pair, nil
}

// Logout revokes the refresh session if one exists. A missing token or an
// already-absent entry is not an error; the caller clears the stored
// credentials regardless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return err
	}
	return nil
}

// UpdateProfile applies a partial update to the user's own record. A new
// email owned by a different user yields common.ErrAlreadyExists; an update
// with no recognized field yields common.ErrNoUpdateData.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, upd models.UserUpdate) (*models.User, error) {
	// profile updates never touch account state or role
	upd.IsActive = nil
	upd.Role = nil

	if upd.Empty() {
		return nil, common.ErrNoUpdateData
	}

	var updated *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if upd.Email != nil && *upd.Email != user.Email {
			other, err := repo.FindByEmail(ctx, *upd.Email)
			if err == nil && other.ID != user.ID {
				return common.ErrAlreadyExists
			}
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
		}

		u, err := repo.Update(ctx, user.ID, upd)
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteAccount soft-deletes the user by flipping the active flag. Issued
// access tokens stay valid until their natural expiry; refresh sessions are
// left to their TTL and are rejected on use because the user is inactive.
func (s *AuthService) DeleteAccount(ctx context.Context, user *models.User) error {
	inactive := false
	_, err := s.repomanager.Users(s.db).Update(ctx, user.ID, models.UserUpdate{IsActive: &inactive})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "user account deactivated", "user_id", user.ID)
	return nil
}

func (s *AuthService) openSession(ctx context.Context, userID int64) (*TokenPair, error) {
	access, accessTTL, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, common.ErrInternal
	}

	refresh, refreshTTL, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, common.ErrInternal
	}

	if err := s.sessions.Set(ctx, refresh, strconv.FormatInt(userID, 10), refreshTTL); err != nil {
		s.logger.Error(ctx, "storing refresh session", "error", err.Error())
		return nil, common.ErrInternal
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresIn:  accessTTL,
		RefreshToken:     refresh,
		RefreshExpiresIn: refreshTTL,
	}, nil
}
