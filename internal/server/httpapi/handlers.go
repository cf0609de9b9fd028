package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type VersionView struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"documentId"`
	Version     int       `json:"version"`
	FileName    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	FileSize    int64     `json:"fileSize"`
	UploaderID  string    `json:"uploaderId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type VersionsResponse struct {
	Versions []VersionView `json:"versions"`
}

type IntentView struct {
	ID                string     `json:"id"`
	CaseID            string     `json:"caseId"`
	DocumentID        string     `json:"documentId"`
	Key               string     `json:"key"`
	FileName          string     `json:"filename"`
	ContentType       string     `json:"contentType"`
	ExpectedFileSize  int64      `json:"expectedFileSize"`
	ExpectedVersion   int        `json:"expectedVersion"`
	Status            string     `json:"status"`
	CreatedBy         string     `json:"createdBy"`
	CreatedAt         time.Time  `json:"createdAt"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	FinalizedAt       *time.Time `json:"finalizedAt,omitempty"`
	LastError         string     `json:"lastError,omitempty"`
	DocumentVersionID string     `json:"documentVersionId,omitempty"`
	CleanedAt         *time.Time `json:"cleanedAt,omitempty"`
}

type IntentsResponse struct {
	Items      []IntentView   `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
	Counts     map[string]int `json:"counts"`
}

func (h *handler) listVersions(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFrom(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	versions, err := h.documents.ListVersions(r.Context(), caller, chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := VersionsResponse{Versions: make([]VersionView, 0, len(versions))}
	for _, v := range versions {
		resp.Versions = append(resp.Versions, VersionView{
			ID:          v.ID,
			DocumentID:  v.DocumentID,
			Version:     v.Version,
			FileName:    v.FileName,
			ContentType: v.ContentType,
			FileSize:    v.FileSize,
			UploaderID:  v.UploaderID,
			CreatedAt:   v.CreatedAt,
		})
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// download redirects to a short-lived presigned GET.
func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFrom(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	url, _, err := h.documents.DownloadURL(r.Context(), caller, chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *handler) listIntents(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFrom(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	take, err := intParam(q.Get("take"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.documents.ListIntents(r.Context(), caller, services.IntentQuery{
		Status: q.Get("status"),
		Query:  q.Get("q"),
		Cursor: q.Get("cursor"),
		Take:   take,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := IntentsResponse{
		Items:      make([]IntentView, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		Counts:     make(map[string]int, len(page.Counts)),
	}
	for status, n := range page.Counts {
		resp.Counts[string(status)] = n
	}
	for _, in := range page.Items {
		resp.Items = append(resp.Items, intentView(in))
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// sweep runs one ledger sweep over the caller's tenant.
func (h *handler) sweep(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFrom(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := caller.Require(auth.PermAdminSettings); err != nil {
		h.writeError(w, r, err)
		return
	}

	opts := services.DefaultSweepOptions()
	opts.TenantID = caller.TenantID

	q := r.URL.Query()
	if v := q.Get("dryRun"); v != "" {
		opts.DryRun, err = strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: dryRun must be a boolean", common.ErrInvalidInput))
			return
		}
	}
	if v := q.Get("grace"); v != "" {
		opts.Grace, err = time.ParseDuration(v)
		if err != nil || opts.Grace < 0 {
			h.writeError(w, r, fmt.Errorf("%w: grace must be a non-negative duration", common.ErrInvalidInput))
			return
		}
	}
	take, err := intParam(q.Get("take"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if take > 0 {
		opts.Take = take
	}

	report, err := h.sweeper.SweepIntents(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, report)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: take must be a non-negative integer", common.ErrInvalidInput)
	}
	return n, nil
}

func intentView(in *models.UploadIntent) IntentView {
	return IntentView{
		ID:                in.ID,
		CaseID:            in.CaseID,
		DocumentID:        in.DocumentID,
		Key:               in.Key,
		FileName:          in.FileName,
		ContentType:       in.ContentType,
		ExpectedFileSize:  in.ExpectedFileSize,
		ExpectedVersion:   in.ExpectedVersion,
		Status:            string(in.Status),
		CreatedBy:         in.CreatedBy,
		CreatedAt:         in.CreatedAt,
		ExpiresAt:         in.ExpiresAt,
		FinalizedAt:       in.FinalizedAt,
		LastError:         in.LastError,
		DocumentVersionID: in.DocumentVersionID,
		CleanedAt:         in.CleanedAt,
	}
}
