package uploader

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/casevault/internal/client/journal"
	"github.com/dmitrijs2005/casevault/internal/uploadapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Journal is where uploads wait between a successful PUT and an
// acknowledged finalize.
type Journal interface {
	Save(ctx context.Context, e journal.Entry) error
	Delete(ctx context.Context, intentID string) error
	List(ctx context.Context) ([]journal.Entry, error)
}

// Finished is the outcome of finishing one journaled upload.
type Finished struct {
	Entry    journal.Entry
	Response *uploadapi.FinalizeUploadResponse
	Err      error
}

// settled reports whether a finalize outcome is final, so repeating the
// call cannot change it.
func settled(err error) bool {
	if err == nil {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.Aborted, codes.FailedPrecondition:
		return true
	}
	return false
}

// finalizeJournaled finalizes req and drops its journal entry once the
// outcome is settled.
func (c *Client) finalizeJournaled(ctx context.Context, req uploadapi.FinalizeUploadRequest) (*uploadapi.FinalizeUploadResponse, error) {
	resp, err := c.Finalize(ctx, req)
	if c.journal != nil && settled(err) {
		_ = c.journal.Delete(context.WithoutCancel(ctx), req.IntentID)
	}
	return resp, err
}

// FinishPending finalizes every journaled upload. Finalize is idempotent, so
// entries whose earlier finalize did land come back as AlreadyFinalized.
func (c *Client) FinishPending(ctx context.Context) ([]Finished, error) {
	if c.journal == nil {
		return nil, errors.New("no upload journal configured")
	}
	entries, err := c.journal.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Finished, 0, len(entries))
	for _, e := range entries {
		resp, err := c.finalizeJournaled(ctx, e.Request)
		out = append(out, Finished{Entry: e, Response: resp, Err: err})
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	return out, nil
}

// Pending lists journaled uploads without contacting the server.
func (c *Client) Pending(ctx context.Context) ([]journal.Entry, error) {
	if c.journal == nil {
		return nil, nil
	}
	return c.journal.List(ctx)
}
