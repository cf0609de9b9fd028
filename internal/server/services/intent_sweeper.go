package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/storage"
)

// SweepOptions selects stale intents. TenantID "" sweeps every tenant.
type SweepOptions struct {
	TenantID string
	Grace    time.Duration
	Take     int
	DryRun   bool
}

// DefaultSweepOptions looks at up to 200 intents that expired a day ago.
func DefaultSweepOptions() SweepOptions {
	return SweepOptions{Grace: 24 * time.Hour, Take: 200}
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Scanned     int  `json:"scanned"`
	Recovered   int  `json:"recovered"`
	KeyMismatch int  `json:"keyMismatch"`
	Missing     int  `json:"missing"`
	Deleted     int  `json:"deleted"`
	Deletable   int  `json:"deletable"`
	Errors      int  `json:"errors"`
	DryRun      bool `json:"dryRun"`
}

// SweepIntents settles abandoned uploads: intents whose object was in fact
// committed are recovered as FINALIZED, and orphaned objects are deleted.
// Objects referenced by a version are never deleted.
func (s *UploadService) SweepIntents(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	if opts.Take <= 0 {
		opts.Take = DefaultSweepOptions().Take
	}
	report := &SweepReport{DryRun: opts.DryRun}
	cutoff := s.now().Add(-opts.Grace)

	stale, err := s.repos.Intents().ListStale(ctx, opts.TenantID, cutoff, opts.Take)
	if err != nil {
		return nil, fmt.Errorf("error listing stale intents: %w", err)
	}

	for _, in := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if err := s.sweepOne(ctx, in, opts.DryRun, report); err != nil {
			report.Errors++
			s.log.Error(ctx, "error sweeping upload intent", "intent_id", in.ID, "error", err)
		}
	}

	s.log.Info(ctx, "upload intents swept",
		"scanned", report.Scanned, "recovered", report.Recovered, "deleted", report.Deleted,
		"missing", report.Missing, "errors", report.Errors, "dry_run", opts.DryRun)
	return report, nil
}

func (s *UploadService) sweepOne(ctx context.Context, in *models.UploadIntent, dryRun bool, report *SweepReport) error {
	repo := s.repos.Intents()

	if !s.keys.Contains(in.Key, in.CaseID, in.DocumentID, in.ExpectedVersion) {
		report.KeyMismatch++
		if dryRun {
			return nil
		}
		if err := s.sweepFail(ctx, in, fmt.Errorf("%w: %s", common.ErrKeyMismatch, in.Key)); err != nil {
			return err
		}
		return s.markCleaned(ctx, in)
	}

	v, err := s.repos.Versions().GetByKey(ctx, in.TenantID, in.Key)
	switch {
	case err == nil:
		report.Recovered++
		if dryRun {
			return nil
		}
		if in.Status == models.IntentInitiated {
			now := s.now()
			err := repo.MarkFinalized(ctx, in.TenantID, in.ID, v.ID, snapshotOf(v, true, now), now)
			if err != nil && !errors.Is(err, common.ErrIntentClosed) {
				return err
			}
			return nil
		}
		return s.markCleaned(ctx, in)
	case !isNotFound(err):
		return err
	}

	if _, err := s.storage.HeadObject(ctx, in.Key); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		report.Missing++
		if dryRun {
			return nil
		}
		if err := s.sweepFail(ctx, in, fmt.Errorf("%w: object was never uploaded", common.ErrIntentExpired)); err != nil {
			return err
		}
		return s.markCleaned(ctx, in)
	}

	if dryRun {
		report.Deletable++
		return nil
	}

	// Close the intent before touching the object: a finalize racing the
	// sweep then loses on its own guarded close and rolls back.
	closed, err := s.sweepClose(ctx, in, fmt.Errorf("%w: orphan object removed", common.ErrIntentExpired))
	if err != nil {
		return err
	}
	if !closed {
		report.Recovered++
		return nil
	}

	if err := s.storage.DeleteObject(ctx, in.Key); err != nil {
		return fmt.Errorf("error deleting orphan object: %w", err)
	}
	report.Deleted++

	return s.markCleaned(ctx, in)
}

// sweepFail closes an INITIATED intent; FAILED intents keep their error.
func (s *UploadService) sweepFail(ctx context.Context, in *models.UploadIntent, cause error) error {
	_, err := s.sweepClose(ctx, in, cause)
	return err
}

// sweepClose moves an INITIATED intent to FAILED and reports whether the
// intent is FAILED afterwards. false means a finalize closed it first.
func (s *UploadService) sweepClose(ctx context.Context, in *models.UploadIntent, cause error) (bool, error) {
	switch in.Status {
	case models.IntentFailed:
		return true, nil
	case models.IntentInitiated:
	default:
		return false, nil
	}

	now := s.now()
	result, _ := json.Marshal(failedSnapshot{Code: common.CodeOf(cause), Message: cause.Error(), FailedAt: now})
	err := s.repos.Intents().MarkFailed(ctx, in.TenantID, in.ID, lastErrorOf(cause), result, now)
	switch {
	case errors.Is(err, common.ErrIntentClosed):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (s *UploadService) markCleaned(ctx context.Context, in *models.UploadIntent) error {
	err := s.repos.Intents().MarkCleaned(ctx, in.TenantID, in.ID, s.now())
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// RunIntentSweeper sweeps every interval until ctx is done.
func (s *UploadService) RunIntentSweeper(ctx context.Context, interval time.Duration, opts SweepOptions) {
	if interval <= 0 {
		s.log.Info(ctx, "intent sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "intent sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepIntents(ctx, opts); err != nil && ctx.Err() == nil {
				s.log.Error(ctx, "intent sweep failed", "error", err)
			}
		}
	}
}
