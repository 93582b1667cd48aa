// Package repomanager vends repository implementations bound to a database
// handle and exposes the schema migration hook.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/avolkov/authgate/internal/dbx"
	"github.com/avolkov/authgate/internal/server/repositories/users"
)

// RepositoryManager builds repositories over a DBTX, so that services can use
// the same repository code inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
