package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/events"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/storage"
)

// FinalizeRequest claims that Key now holds ExpectedVersion of DocumentID.
// IntentID is authoritative when set; otherwise the intent is looked up by
// key. CaseID is only consulted for a new document finalized without an
// intent.
type FinalizeRequest struct {
	IntentID            string
	CaseID              string
	DocumentID          string
	ExpectedVersion     int
	Key                 string
	FileName            string
	ExpectedFileSize    int64
	ExpectedContentType string
	DocumentMeta
}

type FinalizeResult struct {
	DocumentID       string
	Version          int
	VersionID        string
	AlreadyFinalized bool
}

// FinalizeUpload attaches the stored object to the document as a new
// immutable version. Repeated and racing calls for the same upload converge
// on the single committed version.
func (s *UploadService) FinalizeUpload(ctx context.Context, caller auth.Caller, req FinalizeRequest) (*FinalizeResult, error) {
	if err := s.throttle(ctx, caller, ActionFinalize); err != nil {
		return nil, err
	}
	if err := validateFinalize(req); err != nil {
		return nil, err
	}

	intent, err := s.resolveIntent(ctx, caller.TenantID, req)
	if err != nil {
		return nil, err
	}

	doc, err := s.loadDocument(ctx, caller.TenantID, req.DocumentID)
	if err != nil {
		return nil, err
	}

	caseID, err := owningCase(doc, intent, req)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeUpload(ctx, caller, caseID); err != nil {
		return nil, err
	}

	if intent != nil {
		if err := intentMatches(intent, req, caseID); err != nil {
			return nil, s.failIntent(ctx, intent, err)
		}
		switch intent.Status {
		case models.IntentFinalized:
			return &FinalizeResult{
				DocumentID:       intent.DocumentID,
				Version:          intent.ExpectedVersion,
				VersionID:        intent.DocumentVersionID,
				AlreadyFinalized: true,
			}, nil
		case models.IntentFailed:
			return nil, fmt.Errorf("%w: %s", common.ErrIntentClosed, intent.LastError)
		}
	}

	if res, done, err := s.alreadyCommitted(ctx, caller.TenantID, intent, req); done {
		return res, err
	}

	if !s.keys.Contains(req.Key, caseID, req.DocumentID, req.ExpectedVersion) {
		return nil, s.failIntent(ctx, intent, fmt.Errorf("%w: %s", common.ErrKeyMismatch, req.Key))
	}

	info, err := storage.HeadWithRetry(ctx, s.storage, req.Key, s.policy.HeadRetry)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		cause := fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		if errors.Is(err, storage.ErrNotFound) {
			cause = fmt.Errorf("%w: %s", common.ErrObjectNotFound, req.Key)
		}
		return nil, s.recordTransient(ctx, intent, cause)
	}

	contentType, err := s.verifyObject(info, intent, req)
	if err != nil {
		return nil, s.failIntent(ctx, intent, err)
	}

	// the document may have moved since it was first read
	doc, err = s.loadDocument(ctx, caller.TenantID, req.DocumentID)
	if err != nil {
		return nil, err
	}
	switch {
	case doc == nil && req.ExpectedVersion != 1:
		return nil, s.failIntent(ctx, intent,
			fmt.Errorf("%w: new document must start at version 1", common.ErrVersionConflict))
	case doc != nil && doc.HasFile() && doc.Version == req.ExpectedVersion && doc.FileKey == req.Key:
		return s.convergeOnExisting(ctx, caller.TenantID, intent, req)
	case doc != nil && doc.NextVersion() != req.ExpectedVersion:
		return nil, s.failIntent(ctx, intent, fmt.Errorf("%w: document is at version %d, upload targets %d",
			common.ErrVersionConflict, doc.Version, req.ExpectedVersion))
	}

	version := &models.DocumentVersion{
		ID:          s.newID(),
		TenantID:    caller.TenantID,
		DocumentID:  req.DocumentID,
		Version:     req.ExpectedVersion,
		FileKey:     req.Key,
		FileName:    req.FileName,
		ContentType: contentType,
		FileSize:    info.Size,
		UploaderID:  caller.UserID,
		CreatedAt:   s.now(),
	}

	out := s.commit(ctx, caseID, doc, version, intent, req.DocumentMeta.trimmed())
	switch out.kind {
	case commitApplied:
		s.announce(ctx, caseID, version, intent)
		return &FinalizeResult{DocumentID: version.DocumentID, Version: version.Version, VersionID: version.ID}, nil
	case commitUniqueConflict:
		s.log.Info(ctx, "finalize lost commit race", "document_id", req.DocumentID, "version", req.ExpectedVersion)
		return s.convergeOnExisting(ctx, caller.TenantID, intent, req)
	default:
		if common.Terminal(out.err) {
			return nil, s.failIntent(ctx, intent, out.err)
		}
		return nil, fmt.Errorf("error committing document version: %w", out.err)
	}
}

func validateFinalize(req FinalizeRequest) error {
	if strings.TrimSpace(req.DocumentID) == "" {
		return fmt.Errorf("%w: documentId is required", common.ErrInvalidInput)
	}
	if req.Key == "" || len(req.Key) > maxKeyLength {
		return fmt.Errorf("%w: key must be 1..%d bytes", common.ErrInvalidInput, maxKeyLength)
	}
	if req.ExpectedVersion < 1 || req.ExpectedVersion > maxVersion {
		return fmt.Errorf("%w: expectedVersion must be 1..%d", common.ErrInvalidInput, maxVersion)
	}
	if req.ExpectedFileSize < 0 {
		return fmt.Errorf("%w: expectedFileSize must not be negative", common.ErrInvalidInput)
	}
	if err := validateFilename(req.FileName); err != nil {
		return err
	}
	if err := checkLength("expectedContentType", req.ExpectedContentType, maxContentTypeRunes); err != nil {
		return err
	}
	return req.DocumentMeta.validate()
}

// resolveIntent looks the intent up by id, or by key when no id was sent.
// A missing intent is only an error when an id was sent.
func (s *UploadService) resolveIntent(ctx context.Context, tenantID string, req FinalizeRequest) (*models.UploadIntent, error) {
	repo := s.repos.Intents()

	if req.IntentID != "" {
		intent, err := repo.GetByID(ctx, tenantID, req.IntentID)
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%w: %s", common.ErrIntentNotFound, req.IntentID)
			}
			return nil, fmt.Errorf("error loading upload intent: %w", err)
		}
		return intent, nil
	}

	intent, err := repo.GetByKey(ctx, tenantID, req.Key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading upload intent: %w", err)
	}
	return intent, nil
}

// loadDocument returns nil when the document does not exist yet.
func (s *UploadService) loadDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	doc, err := s.repos.Documents().GetByID(ctx, tenantID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading document: %w", err)
	}
	return doc, nil
}

func owningCase(doc *models.Document, intent *models.UploadIntent, req FinalizeRequest) (string, error) {
	var caseID string
	switch {
	case doc != nil:
		caseID = doc.CaseID
	case intent != nil:
		caseID = intent.CaseID
	default:
		caseID = strings.TrimSpace(req.CaseID)
	}

	if caseID == "" {
		return "", fmt.Errorf("%w: caseId is required for a new document", common.ErrInvalidInput)
	}
	if req.CaseID != "" && req.CaseID != caseID {
		return "", fmt.Errorf("%w: document %s", common.ErrCaseMismatch, req.DocumentID)
	}
	return caseID, nil
}

func intentMatches(intent *models.UploadIntent, req FinalizeRequest, caseID string) error {
	var field string
	switch {
	case intent.Key != req.Key:
		field = "key"
	case intent.DocumentID != req.DocumentID:
		field = "documentId"
	case intent.ExpectedVersion != req.ExpectedVersion:
		field = "expectedVersion"
	case intent.CaseID != caseID:
		field = "caseId"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s differs from upload session %s", common.ErrIntentMismatch, field, intent.ID)
}

// alreadyCommitted is the idempotency fast path on the version row.
// done is false when no row exists yet.
func (s *UploadService) alreadyCommitted(ctx context.Context, tenantID string, intent *models.UploadIntent, req FinalizeRequest) (*FinalizeResult, bool, error) {
	v, err := s.repos.Versions().GetByDocumentVersion(ctx, tenantID, req.DocumentID, req.ExpectedVersion)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, true, fmt.Errorf("error loading document version: %w", err)
	}

	if v.FileKey != req.Key {
		return nil, true, s.failIntent(ctx, intent, fmt.Errorf("%w: version %d already holds another file",
			common.ErrVersionConflict, req.ExpectedVersion))
	}

	s.closeRecovered(ctx, intent, v)
	return &FinalizeResult{DocumentID: v.DocumentID, Version: v.Version, VersionID: v.ID, AlreadyFinalized: true}, true, nil
}

// convergeOnExisting re-reads the committed (document, version) row after a
// lost race and succeeds only if it holds this upload's key.
func (s *UploadService) convergeOnExisting(ctx context.Context, tenantID string, intent *models.UploadIntent, req FinalizeRequest) (*FinalizeResult, error) {
	res, done, err := s.alreadyCommitted(ctx, tenantID, intent, req)
	if !done {
		// the pointer moved but the row is gone; nothing consistent to report
		return nil, s.failIntent(ctx, intent, fmt.Errorf("%w: version %d not found after commit race",
			common.ErrVersionConflict, req.ExpectedVersion))
	}
	return res, err
}

// verifyObject checks the stored object against the upload's declared size
// and type and returns the content type to record.
func (s *UploadService) verifyObject(info *storage.ObjectInfo, intent *models.UploadIntent, req FinalizeRequest) (string, error) {
	if info.Size <= 0 {
		return "", fmt.Errorf("%w: stored object is empty", common.ErrStoredObjectInvalid)
	}
	if info.Size > s.policy.MaxFileSize {
		return "", fmt.Errorf("%w: stored object has %d bytes, limit is %d",
			common.ErrStoredObjectInvalid, info.Size, s.policy.MaxFileSize)
	}

	// The size recorded at initiate is authoritative; a size sent with
	// finalize must agree with it as well.
	if intent != nil && intent.ExpectedFileSize > 0 && info.Size != intent.ExpectedFileSize {
		return "", fmt.Errorf("%w: expected %d bytes, stored %d", common.ErrSizeMismatch, intent.ExpectedFileSize, info.Size)
	}
	if req.ExpectedFileSize > 0 && info.Size != req.ExpectedFileSize {
		return "", fmt.Errorf("%w: expected %d bytes, stored %d", common.ErrSizeMismatch, req.ExpectedFileSize, info.Size)
	}

	contentType := normalizeContentType(info.ContentType)
	if contentType == "" {
		contentType = normalizeContentType(req.ExpectedContentType)
	}
	if contentType == "" && intent != nil {
		contentType = intent.ContentType
	}
	if !allowedType(contentType) {
		return "", fmt.Errorf("%w: %q", common.ErrTypeMismatch, contentType)
	}

	return contentType, nil
}

type commitKind int

const (
	commitApplied commitKind = iota
	commitUniqueConflict
	commitFailed
)

// commitOutcome is the tagged result of one commit attempt.
type commitOutcome struct {
	kind commitKind
	err  error
}

// commit writes the version row, moves the document pointer and closes the
// intent in one transaction. doc is nil for a new document.
func (s *UploadService) commit(ctx context.Context, caseID string, doc *models.Document, v *models.DocumentVersion, intent *models.UploadIntent, meta DocumentMeta) commitOutcome {
	now := v.CreatedAt

	err := s.repos.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		if doc == nil {
			title := meta.Title
			if title == "" {
				title = v.FileName
			}
			created := &models.Document{
				ID: v.DocumentID, TenantID: v.TenantID, CaseID: caseID,
				Title: title, Category: meta.Category, Notes: meta.Notes,
				FileKey: v.FileKey, FileName: v.FileName, ContentType: v.ContentType, FileSize: v.FileSize,
				Version: v.Version, UploaderID: v.UploaderID, CreatedAt: now, UpdatedAt: now,
			}
			if err := repos.Documents().Create(ctx, created); err != nil {
				return err
			}
			if err := repos.Versions().Create(ctx, v); err != nil {
				return err
			}
		} else {
			if err := repos.Versions().Create(ctx, v); err != nil {
				return err
			}
			next := *doc
			next.FileKey, next.FileName, next.ContentType, next.FileSize = v.FileKey, v.FileName, v.ContentType, v.FileSize
			next.Version, next.UploaderID, next.UpdatedAt = v.Version, v.UploaderID, now
			next.Title, next.Category, next.Notes = meta.Title, meta.Category, meta.Notes
			if err := repos.Documents().AdvanceVersion(ctx, &next); err != nil {
				return err
			}
		}

		if intent != nil {
			return repos.Intents().MarkFinalized(ctx, intent.TenantID, intent.ID, v.ID, snapshotOf(v, false, now), now)
		}
		return nil
	})

	switch {
	case err == nil:
		return commitOutcome{kind: commitApplied}
	case dbx.IsUniqueViolation(err):
		return commitOutcome{kind: commitUniqueConflict, err: err}
	default:
		return commitOutcome{kind: commitFailed, err: err}
	}
}

func (s *UploadService) announce(ctx context.Context, caseID string, v *models.DocumentVersion, intent *models.UploadIntent) {
	evt := events.VersionFinalized{
		TenantID:    v.TenantID,
		CaseID:      caseID,
		DocumentID:  v.DocumentID,
		VersionID:   v.ID,
		Version:     v.Version,
		Key:         v.FileKey,
		FileName:    v.FileName,
		FileSize:    v.FileSize,
		ContentType: v.ContentType,
		UploaderID:  v.UploaderID,
		FinalizedAt: v.CreatedAt,
	}
	if intent != nil {
		evt.IntentID = intent.ID
	}

	s.log.Info(ctx, "document version finalized",
		"document_id", v.DocumentID, "version", v.Version, "version_id", v.ID, "intent_id", evt.IntentID)

	if err := s.events.PublishVersionFinalized(ctx, evt); err != nil {
		s.log.Warn(ctx, "error publishing version event", "document_id", v.DocumentID, "error", err)
	}
}
