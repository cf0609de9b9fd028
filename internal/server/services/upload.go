package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/access"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/events"
	"github.com/dmitrijs2005/casevault/internal/server/keys"
	"github.com/dmitrijs2005/casevault/internal/server/ratelimit"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/storage"
	"github.com/google/uuid"
)

// Rate limit actions.
const (
	ActionInitiate = "documents.upload.initiate"
	ActionFinalize = "documents.upload.finalize"
)

// UploadPolicy holds the upload limits and storage timings.
type UploadPolicy struct {
	MaxFileSize   int64
	PresignExpiry time.Duration
	HeadRetry     storage.RetryPolicy
}

// DefaultUploadPolicy allows 25 MiB files and 10 minute upload windows.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxFileSize:   25 << 20,
		PresignExpiry: 10 * time.Minute,
		HeadRetry:     storage.DefaultRetryPolicy(),
	}
}

// UploadService coordinates direct-to-storage uploads. It keeps no
// per-document state; concurrent finalizes are reconciled by the store's
// transaction and the (document, version) unique constraint.
type UploadService struct {
	repos   repomanager.RepositoryManager
	storage storage.Gateway
	keys    *keys.Builder
	limiter ratelimit.Limiter
	access  access.Authorizer
	events  events.Publisher
	policy  UploadPolicy
	log     logging.Logger

	now   func() time.Time
	newID func() string
}

func NewUploadService(
	repos repomanager.RepositoryManager,
	gw storage.Gateway,
	kb *keys.Builder,
	limiter ratelimit.Limiter,
	authz access.Authorizer,
	pub events.Publisher,
	policy UploadPolicy,
	log logging.Logger,
) *UploadService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &UploadService{
		repos:   repos,
		storage: gw,
		keys:    kb,
		limiter: limiter,
		access:  authz,
		events:  pub,
		policy:  policy,
		log:     log.With("module", "uploads"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// throttle counts one call of action. Limiter outages admit the call.
func (s *UploadService) throttle(ctx context.Context, caller auth.Caller, action string) error {
	if s.limiter == nil {
		return nil
	}
	d, err := s.limiter.Allow(ctx, ratelimit.Key{TenantID: caller.TenantID, UserID: caller.UserID, Action: action})
	if err != nil {
		s.log.Warn(ctx, "rate limiter unavailable", "action", action, "error", err)
		return nil
	}
	if !d.Allowed {
		return fmt.Errorf("%w: retry in %s", common.ErrThrottled, d.RetryAfter.Round(time.Second))
	}
	return nil
}

// authorizeUpload checks the tenant permission and case access for uploads.
func (s *UploadService) authorizeUpload(ctx context.Context, caller auth.Caller, caseID string) error {
	if err := caller.Require(auth.PermDocumentUpload); err != nil {
		return err
	}
	return s.access.RequireCaseAccess(ctx, caller, caseID, access.LevelView)
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
