package grpc

import (
	"context"
	"errors"
	"strconv"

	"github.com/dmitrijs2005/casevault/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeByKind = map[common.Kind]codes.Code{
	common.KindUnauthenticated: codes.Unauthenticated,
	common.KindAuthorization:   codes.PermissionDenied,
	common.KindValidation:      codes.InvalidArgument,
	common.KindThrottled:       codes.ResourceExhausted,
	common.KindTransient:       codes.Unavailable,
	common.KindConflict:        codes.Aborted,
	common.KindIntegrity:       codes.FailedPrecondition,
	common.KindNotFound:        codes.NotFound,
	common.KindInternal:        codes.Internal,
}

// toStatus converts a service error into a status carrying the error code as
// ErrorInfo. Internal details are logged and not returned.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := common.KindOf(err)
	msg := err.Error()
	if kind == common.KindInternal {
		s.logger.Error(ctx, "request failed", "error", err)
		msg = common.ErrorInternal.Error()
	}

	st := status.New(codeByKind[kind], msg)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: common.CodeOf(err),
		Domain: common.ErrorDomain,
		Metadata: map[string]string{
			"kind":      kind.String(),
			"retryable": strconv.FormatBool(common.Retryable(err)),
		},
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}
