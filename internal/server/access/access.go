// Package access decides whether a caller may act on a case.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/cases"
)

// Level orders case permissions; a higher level implies the lower ones.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelManage
)

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelManage:
		return "manage"
	default:
		return "none"
	}
}

// LevelOfRole maps a case_members role to its level.
func LevelOfRole(role string) Level {
	switch role {
	case "viewer":
		return LevelView
	case "editor":
		return LevelEdit
	case "owner":
		return LevelManage
	default:
		return LevelNone
	}
}

type Authorizer interface {
	RequireCaseAccess(ctx context.Context, caller auth.Caller, caseID string, level Level) error
}

// CaseAuthorizer grants access from case membership. Tenant-wide
// case:view:all stands in for membership at view level.
type CaseAuthorizer struct {
	cases cases.Repository
}

func NewCaseAuthorizer(repo cases.Repository) *CaseAuthorizer {
	return &CaseAuthorizer{cases: repo}
}

func (a *CaseAuthorizer) RequireCaseAccess(ctx context.Context, caller auth.Caller, caseID string, level Level) error {
	if _, err := a.cases.GetByID(ctx, caller.TenantID, caseID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// unknown and foreign cases look the same to the caller
			return fmt.Errorf("%w: case %s", common.ErrPermissionDenied, caseID)
		}
		return err
	}

	if level <= LevelView && caller.Has(auth.PermCaseViewAll) {
		return nil
	}

	role, err := a.cases.GetMemberRole(ctx, caseID, caller.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: not a member of case %s", common.ErrPermissionDenied, caseID)
		}
		return err
	}

	if LevelOfRole(role) < level {
		return fmt.Errorf("%w: %s access required on case %s", common.ErrPermissionDenied, level, caseID)
	}
	return nil
}
