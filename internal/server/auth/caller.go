package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/casevault/internal/common"
)

// Tenant-level permissions carried in tokens.
const (
	PermDocumentUpload = "document:upload"
	PermDocumentView   = "document:view"
	PermCaseViewAll    = "case:view:all"
	PermAdminSettings  = "admin:settings"
)

// Caller is an authenticated, tenant-scoped identity.
type Caller struct {
	UserID      string
	TenantID    string
	Permissions []string
}

func (c Caller) Validate() error {
	if c.UserID == "" || c.TenantID == "" {
		return fmt.Errorf("%w: token lacks user or tenant", common.ErrInvalidToken)
	}
	return nil
}

// Has reports whether the caller holds perm.
func (c Caller) Has(perm string) bool {
	return slices.Contains(c.Permissions, perm)
}

// Require returns ErrPermissionDenied unless the caller holds perm.
func (c Caller) Require(perm string) error {
	if !c.Has(perm) {
		return fmt.Errorf("%w: missing %s", common.ErrPermissionDenied, perm)
	}
	return nil
}

type ctxKey string

const callerKey ctxKey = "caller"

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFrom returns the caller stored by the transport's auth layer.
func CallerFrom(ctx context.Context) (Caller, error) {
	c, ok := ctx.Value(callerKey).(Caller)
	if !ok {
		return Caller{}, common.ErrorUnauthorized
	}
	return c, nil
}
