package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Licenses(db dbx.DBTX) licenses.Repository
}
