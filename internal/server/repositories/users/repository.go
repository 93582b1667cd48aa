// Package users declares the repository contract for the user directory and
// its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/avolkov/authgate/internal/server/models"
)

// Repository defines the persistence operations over user records.
type Repository interface {
	// Create inserts a new user and returns it with its generated id and
	// creation timestamp. A duplicate email yields common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindByID returns the user with the given id, or common.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.User, error)

	// FindByEmail returns the user with the given email, or common.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// Update applies the non-nil fields of upd to the user and returns the
	// refreshed record. An unknown id yields common.ErrNotFound; an email
	// collision yields common.ErrAlreadyExists.
	Update(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)

	// List returns one page of users matching the filter plus the total count.
	List(ctx context.Context, filter models.PageFilter) ([]models.User, int64, error)
}
