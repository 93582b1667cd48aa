package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/models"
	"github.com/avolkov/authgate/internal/server/repositories/repomanager"
)

// RequireAdmin is the authorization predicate guarding role-management
// operations. It expects an already-authenticated user.
func RequireAdmin(user *models.User) error {
	if user == nil || !user.IsAdmin() {
		return common.ErrForbidden
	}
	return nil
}

// AdminService implements the admin-only operations: user listing and role
// management.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AdminService {
	return &AdminService{db: db, repomanager: m, logger: logger}
}

// UpdateRole assigns a new role to the user. An unknown id yields
// common.ErrNotFound; an unknown role yields common.ErrValidation.
func (s *AdminService) UpdateRole(ctx context.Context, userID int64, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	user, err := repo.Update(ctx, userID, models.UserUpdate{Role: &role})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "role updated", "user_id", userID, "role", role)
	return user, nil
}

// ListUsers returns one page of users matching the filter.
func (s *AdminService) ListUsers(ctx context.Context, filter models.PageFilter) (*models.Page[models.User], error) {
	filter = filter.Normalized()

	items, total, err := s.repomanager.Users(s.db).List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return models.NewPage(items, total, filter), nil
}
