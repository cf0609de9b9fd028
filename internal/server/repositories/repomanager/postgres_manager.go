// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors, transactions and database
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/migrations"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/cases"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/intents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/versions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// postgresRepositories binds every repository to the same DBTX.
type postgresRepositories struct {
	db dbx.DBTX
}

func (r postgresRepositories) Cases() cases.Repository {
	return cases.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Documents() documents.Repository {
	return documents.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Versions() versions.Repository {
	return versions.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Intents() intents.Repository {
	return intents.NewPostgresRepository(r.db)
}

// PostgresRepositoryManager vends PostgreSQL-backed repositories bound to the
// pool, or to a transaction inside WithTx.
type PostgresRepositoryManager struct {
	postgresRepositories
	db *sql.DB
}

// txOptions keeps the default isolation; the commit path relies on row
// guards and unique constraints rather than serializable snapshots.
var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// WithTx runs fn in a single transaction.
func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, txOptions, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, postgresRepositories{db: tx})
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{
		postgresRepositories: postgresRepositories{db: db},
		db:                   db,
	}, nil
}
