package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

// InitiateRequest targets either an existing document (new version) or a
// case (new document). Exactly one of DocumentID and CaseID is set.
type InitiateRequest struct {
	DocumentID  string
	CaseID      string
	FileName    string
	FileSize    int64
	ContentType string
	DocumentMeta
}

type InitiateResult struct {
	IntentID            string
	UploadURL           string
	Key                 string
	CaseID              string
	DocumentID          string
	ExpectedVersion     int
	ExpectedFileSize    int64
	ExpectedContentType string
	ExpiresAt           time.Time
	FileName            string
	DocumentMeta
}

// InitiateUpload opens an upload intent and returns a presigned PUT URL for
// a fresh key owned by the target (document, next version).
func (s *UploadService) InitiateUpload(ctx context.Context, caller auth.Caller, req InitiateRequest) (*InitiateResult, error) {
	if err := s.throttle(ctx, caller, ActionInitiate); err != nil {
		return nil, err
	}

	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.CaseID = strings.TrimSpace(req.CaseID)
	if (req.DocumentID == "") == (req.CaseID == "") {
		return nil, fmt.Errorf("%w: exactly one of documentId and caseId is required", common.ErrInvalidInput)
	}

	caseID, documentID, version, err := s.resolveTarget(ctx, caller.TenantID, req)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeUpload(ctx, caller, caseID); err != nil {
		return nil, err
	}

	contentType, err := s.validateInitiate(req)
	if err != nil {
		return nil, err
	}

	key, err := s.keys.Build(caseID, documentID, version, req.FileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	url, err := s.storage.PresignPut(ctx, key, contentType, s.policy.PresignExpiry)
	if err != nil {
		s.log.Error(ctx, "presign put failed", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	now := s.now()
	intent := &models.UploadIntent{
		ID:               s.newID(),
		TenantID:         caller.TenantID,
		CaseID:           caseID,
		DocumentID:       documentID,
		Key:              key,
		FileName:         req.FileName,
		ContentType:      contentType,
		ExpectedFileSize: req.FileSize,
		ExpectedVersion:  version,
		Status:           models.IntentInitiated,
		CreatedBy:        caller.UserID,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.policy.PresignExpiry),
		UpdatedAt:        now,
	}
	if err := s.repos.Intents().Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("error creating upload intent: %w", err)
	}

	s.log.Info(ctx, "upload initiated",
		"intent_id", intent.ID, "document_id", documentID, "version", version, "user_id", caller.UserID)

	return &InitiateResult{
		IntentID:            intent.ID,
		UploadURL:           url,
		Key:                 key,
		CaseID:              caseID,
		DocumentID:          documentID,
		ExpectedVersion:     version,
		ExpectedFileSize:    req.FileSize,
		ExpectedContentType: contentType,
		ExpiresAt:           intent.ExpiresAt,
		FileName:            req.FileName,
		DocumentMeta:        req.DocumentMeta.trimmed(),
	}, nil
}

// resolveTarget returns the owning case, the document id (pre-allocated for
// new documents) and the version the upload will become.
func (s *UploadService) resolveTarget(ctx context.Context, tenantID string, req InitiateRequest) (string, string, int, error) {
	if req.CaseID != "" {
		return req.CaseID, s.newID(), 1, nil
	}

	doc, err := s.repos.Documents().GetByID(ctx, tenantID, req.DocumentID)
	if err != nil {
		if isNotFound(err) {
			return "", "", 0, fmt.Errorf("%w: %s", common.ErrDocumentNotFound, req.DocumentID)
		}
		return "", "", 0, fmt.Errorf("error loading document: %w", err)
	}

	return doc.CaseID, doc.ID, doc.NextVersion(), nil
}

func (s *UploadService) validateInitiate(req InitiateRequest) (string, error) {
	if err := validateFilename(req.FileName); err != nil {
		return "", err
	}
	if err := s.validateSize(req.FileSize); err != nil {
		return "", err
	}
	if err := req.DocumentMeta.validate(); err != nil {
		return "", err
	}
	if err := checkLength("contentType", req.ContentType, maxContentTypeRunes); err != nil {
		return "", err
	}
	return resolveContentType(req.FileName, req.ContentType)
}
