package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/casevault/internal/common"
)

var statusByKind = map[common.Kind]int{
	common.KindUnauthenticated: http.StatusUnauthorized,
	common.KindAuthorization:   http.StatusForbidden,
	common.KindValidation:      http.StatusBadRequest,
	common.KindThrottled:       http.StatusTooManyRequests,
	common.KindTransient:       http.StatusServiceUnavailable,
	common.KindConflict:        http.StatusConflict,
	common.KindIntegrity:       http.StatusUnprocessableEntity,
	common.KindNotFound:        http.StatusNotFound,
	common.KindInternal:        http.StatusInternalServerError,
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	msg := err.Error()
	if kind == common.KindInternal {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = common.ErrorInternal.Error()
	}

	h.writeJSON(w, r, statusByKind[kind], ErrorResponse{Error: ErrorBody{
		Code:      common.CodeOf(err),
		Message:   msg,
		Retryable: common.Retryable(err),
	}})
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(r.Context(), "error encoding response", "error", err)
	}
}
