// Package repomanager vends repository implementations bound to a DBTX and
// exposes the schema migration hook. Services hold one manager and ask it
// for repositories per call, passing either the pooled *sql.DB or an open
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"filevault/internal/dbx"
	"filevault/internal/server/repositories/files"
	"filevault/internal/server/repositories/grants"
	"filevault/internal/server/repositories/revocations"
	"filevault/internal/server/repositories/sharelinks"
	"filevault/internal/server/repositories/users"
)

type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Grants(db dbx.DBTX) grants.Repository
	ShareLinks(db dbx.DBTX) sharelinks.Repository
	Revocations(db dbx.DBTX) revocations.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
