package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/access"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/intents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/storage"
)

const (
	defaultIntentPage = 50
	maxIntentPage     = 200
)

// DocumentService serves read access to version history and the upload ledger.
type DocumentService struct {
	repos          repomanager.RepositoryManager
	storage        storage.Gateway
	access         access.Authorizer
	downloadExpiry time.Duration
	log            logging.Logger
}

func NewDocumentService(repos repomanager.RepositoryManager, gw storage.Gateway, authz access.Authorizer, downloadExpiry time.Duration, log logging.Logger) *DocumentService {
	return &DocumentService{
		repos:          repos,
		storage:        gw,
		access:         authz,
		downloadExpiry: downloadExpiry,
		log:            log.With("module", "documents"),
	}
}

func (s *DocumentService) documentForView(ctx context.Context, caller auth.Caller, documentID string) (*models.Document, error) {
	if err := caller.Require(auth.PermDocumentView); err != nil {
		return nil, err
	}

	doc, err := s.repos.Documents().GetByID(ctx, caller.TenantID, documentID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrDocumentNotFound, documentID)
		}
		return nil, fmt.Errorf("error loading document: %w", err)
	}

	if err := s.access.RequireCaseAccess(ctx, caller, doc.CaseID, access.LevelView); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListVersions returns the document's versions, oldest first.
func (s *DocumentService) ListVersions(ctx context.Context, caller auth.Caller, documentID string) ([]*models.DocumentVersion, error) {
	doc, err := s.documentForView(ctx, caller, documentID)
	if err != nil {
		return nil, err
	}

	list, err := s.repos.Versions().ListByDocument(ctx, caller.TenantID, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing versions: %w", err)
	}
	slices.Reverse(list)
	return list, nil
}

// DownloadURL presigns a GET of one version's object.
func (s *DocumentService) DownloadURL(ctx context.Context, caller auth.Caller, versionID string) (string, *models.DocumentVersion, error) {
	v, err := s.repos.Versions().GetByID(ctx, caller.TenantID, versionID)
	if err != nil {
		if isNotFound(err) {
			return "", nil, fmt.Errorf("%w: version %s", common.ErrDocumentNotFound, versionID)
		}
		return "", nil, fmt.Errorf("error loading version: %w", err)
	}

	if _, err := s.documentForView(ctx, caller, v.DocumentID); err != nil {
		return "", nil, err
	}

	url, err := s.storage.PresignGet(ctx, v.FileKey, v.FileName, s.downloadExpiry)
	if err != nil {
		s.log.Error(ctx, "presign get failed", "version_id", v.ID, "error", err)
		return "", nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return url, v, nil
}

// IntentQuery pages through the upload ledger.
type IntentQuery struct {
	Status string
	Query  string
	Cursor string
	Take   int
}

type IntentPage struct {
	Items      []*models.UploadIntent
	NextCursor string
	Counts     map[models.IntentStatus]int
}

// ListIntents returns one page of the caller's tenant ledger, newest first,
// with per-status totals.
func (s *DocumentService) ListIntents(ctx context.Context, caller auth.Caller, q IntentQuery) (*IntentPage, error) {
	if err := caller.Require(auth.PermAdminSettings); err != nil {
		return nil, err
	}

	status := models.IntentStatus(strings.ToUpper(strings.TrimSpace(q.Status)))
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, q.Status)
	}

	take := q.Take
	switch {
	case take <= 0:
		take = defaultIntentPage
	case take > maxIntentPage:
		take = maxIntentPage
	}

	items, err := s.repos.Intents().List(ctx, intents.Filter{
		TenantID: caller.TenantID,
		Status:   status,
		Query:    q.Query,
		Cursor:   q.Cursor,
		Take:     take + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("error listing upload intents: %w", err)
	}

	page := &IntentPage{Items: items}
	if len(items) > take {
		page.Items = items[:take]
		page.NextCursor = items[take-1].ID
	}

	page.Counts, err = s.repos.Intents().CountByStatus(ctx, caller.TenantID)
	if err != nil {
		return nil, fmt.Errorf("error counting upload intents: %w", err)
	}
	return page, nil
}
