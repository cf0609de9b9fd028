// Package memory is an in-process RepositoryManager. Transactions are
// serialized and applied to a copy of the data that replaces the live copy
// only on success. Unique constraints mirror the SQL schema.
package memory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/cases"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/intents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/versions"
)

type state struct {
	cases     map[string]models.Case
	members   map[[2]string]string
	documents map[string]models.Document
	versions  map[string]models.DocumentVersion
	intents   map[string]models.UploadIntent
}

func newState() *state {
	return &state{
		cases:     map[string]models.Case{},
		members:   map[[2]string]string{},
		documents: map[string]models.Document{},
		versions:  map[string]models.DocumentVersion{},
		intents:   map[string]models.UploadIntent{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.cases {
		c.cases[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.versions {
		c.versions[k] = v
	}
	for k, v := range s.intents {
		c.intents[k] = v
	}
	return c
}

// Store implements repomanager.RepositoryManager.
type Store struct {
	mu   sync.Mutex
	data *state
}

var _ repomanager.RepositoryManager = (*Store)(nil)

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) RunMigrations(context.Context) error { return nil }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.data.clone()
	if err := fn(ctx, view{tx: tx}); err != nil {
		return err
	}
	s.data = tx
	return nil
}

func (s *Store) Cases() cases.Repository         { return caseRepo{view{s: s}} }
func (s *Store) Documents() documents.Repository { return documentRepo{view{s: s}} }
func (s *Store) Versions() versions.Repository   { return versionRepo{view{s: s}} }
func (s *Store) Intents() intents.Repository     { return intentRepo{view{s: s}} }

// SeedCase adds a case and its members with their roles.
func (s *Store) SeedCase(c models.Case, members map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.cases[c.ID] = c
	for user, role := range members {
		s.data.members[[2]string{c.ID, user}] = role
	}
}

// view is bound either to the live data (locking per call) or to a
// transaction's private copy.
type view struct {
	s  *Store
	tx *state
}

func (v view) Cases() cases.Repository         { return caseRepo{v} }
func (v view) Documents() documents.Repository { return documentRepo{v} }
func (v view) Versions() versions.Repository   { return versionRepo{v} }
func (v view) Intents() intents.Repository     { return intentRepo{v} }

func (v view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.data)
}
