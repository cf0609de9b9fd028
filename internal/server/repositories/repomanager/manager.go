package repomanager

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/server/repositories/cases"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/intents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/versions"
)

// Repositories is the set of stores bound to one database handle.
type Repositories interface {
	Cases() cases.Repository
	Documents() documents.Repository
	Versions() versions.Repository
	Intents() intents.Repository
}

// RepositoryManager hands out repositories bound to the pool and runs units
// of work. Everything fn does through its Repositories commits or rolls back
// together; fn's error is returned unwrapped.
type RepositoryManager interface {
	Repositories
	RunMigrations(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
