package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/intents"
)

type caseRepo struct{ view }

func (r caseRepo) GetByID(_ context.Context, tenantID, caseID string) (*models.Case, error) {
	var out *models.Case
	err := r.do(func(st *state) error {
		c, ok := st.cases[caseID]
		if !ok || c.TenantID != tenantID {
			return common.ErrorNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r caseRepo) GetMemberRole(_ context.Context, caseID, userID string) (string, error) {
	var role string
	err := r.do(func(st *state) error {
		var ok bool
		role, ok = st.members[[2]string{caseID, userID}]
		if !ok {
			return common.ErrorNotFound
		}
		return nil
	})
	return role, err
}

type documentRepo struct{ view }

func (r documentRepo) GetByID(_ context.Context, tenantID, id string) (*models.Document, error) {
	var out *models.Document
	err := r.do(func(st *state) error {
		d, ok := st.documents[id]
		if !ok || d.TenantID != tenantID {
			return common.ErrorNotFound
		}
		out = &d
		return nil
	})
	return out, err
}

func (r documentRepo) Create(_ context.Context, d *models.Document) error {
	return r.do(func(st *state) error {
		if _, ok := st.documents[d.ID]; ok {
			return fmt.Errorf("%w: documents_pkey", dbx.ErrUniqueViolation)
		}
		st.documents[d.ID] = *d
		return nil
	})
}

func (r documentRepo) AdvanceVersion(_ context.Context, d *models.Document) error {
	return r.do(func(st *state) error {
		cur, ok := st.documents[d.ID]
		if !ok || cur.TenantID != d.TenantID || cur.Version != d.Version-1 {
			return common.ErrVersionConflict
		}
		cur.FileKey = d.FileKey
		cur.FileName = d.FileName
		cur.ContentType = d.ContentType
		cur.FileSize = d.FileSize
		cur.Version = d.Version
		cur.UploaderID = d.UploaderID
		if d.Title != "" {
			cur.Title = d.Title
		}
		if d.Category != "" {
			cur.Category = d.Category
		}
		if d.Notes != "" {
			cur.Notes = d.Notes
		}
		cur.UpdatedAt = d.UpdatedAt
		st.documents[d.ID] = cur
		return nil
	})
}

type versionRepo struct{ view }

func (r versionRepo) Create(_ context.Context, v *models.DocumentVersion) error {
	return r.do(func(st *state) error {
		if _, ok := st.versions[v.ID]; ok {
			return fmt.Errorf("%w: document_versions_pkey", dbx.ErrUniqueViolation)
		}
		for _, existing := range st.versions {
			if existing.DocumentID == v.DocumentID && existing.Version == v.Version {
				return fmt.Errorf("%w: document_versions_document_id_version_key", dbx.ErrUniqueViolation)
			}
		}
		st.versions[v.ID] = *v
		return nil
	})
}

func (r versionRepo) find(match func(v models.DocumentVersion) bool) (*models.DocumentVersion, error) {
	var out *models.DocumentVersion
	err := r.do(func(st *state) error {
		for _, v := range st.versions {
			if match(v) {
				out = &v
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r versionRepo) GetByDocumentVersion(_ context.Context, tenantID, documentID string, version int) (*models.DocumentVersion, error) {
	return r.find(func(v models.DocumentVersion) bool {
		return v.TenantID == tenantID && v.DocumentID == documentID && v.Version == version
	})
}

func (r versionRepo) GetByID(_ context.Context, tenantID, id string) (*models.DocumentVersion, error) {
	return r.find(func(v models.DocumentVersion) bool {
		return v.TenantID == tenantID && v.ID == id
	})
}

func (r versionRepo) GetByKey(_ context.Context, tenantID, key string) (*models.DocumentVersion, error) {
	return r.find(func(v models.DocumentVersion) bool {
		return v.TenantID == tenantID && v.FileKey == key
	})
}

func (r versionRepo) ListByDocument(_ context.Context, tenantID, documentID string) ([]*models.DocumentVersion, error) {
	var out []*models.DocumentVersion
	err := r.do(func(st *state) error {
		for _, v := range st.versions {
			if v.TenantID == tenantID && v.DocumentID == documentID {
				out = append(out, &v)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, err
}

type intentRepo struct{ view }

func copyIntent(in models.UploadIntent) *models.UploadIntent {
	in.FinalizedAt = cloneTime(in.FinalizedAt)
	in.CleanedAt = cloneTime(in.CleanedAt)
	if in.Result != nil {
		in.Result = append([]byte(nil), in.Result...)
	}
	return &in
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (r intentRepo) Create(_ context.Context, in *models.UploadIntent) error {
	return r.do(func(st *state) error {
		if _, ok := st.intents[in.ID]; ok {
			return fmt.Errorf("%w: upload_intents_pkey", dbx.ErrUniqueViolation)
		}
		for _, existing := range st.intents {
			if existing.TenantID == in.TenantID && existing.Key == in.Key {
				return fmt.Errorf("%w: upload_intents_tenant_id_key_key", dbx.ErrUniqueViolation)
			}
		}
		st.intents[in.ID] = *copyIntent(*in)
		return nil
	})
}

func (r intentRepo) GetByID(_ context.Context, tenantID, id string) (*models.UploadIntent, error) {
	var out *models.UploadIntent
	err := r.do(func(st *state) error {
		in, ok := st.intents[id]
		if !ok || in.TenantID != tenantID {
			return common.ErrorNotFound
		}
		out = copyIntent(in)
		return nil
	})
	return out, err
}

func (r intentRepo) GetByKey(_ context.Context, tenantID, key string) (*models.UploadIntent, error) {
	var out *models.UploadIntent
	err := r.do(func(st *state) error {
		for _, in := range st.intents {
			if in.TenantID == tenantID && in.Key == key {
				out = copyIntent(in)
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

// update applies fn to an INITIATED intent.
func (r intentRepo) update(tenantID, id string, fn func(in *models.UploadIntent)) error {
	return r.do(func(st *state) error {
		in, ok := st.intents[id]
		if !ok || in.TenantID != tenantID || in.Status != models.IntentInitiated {
			return common.ErrIntentClosed
		}
		fn(&in)
		st.intents[id] = in
		return nil
	})
}

func (r intentRepo) MarkFinalized(_ context.Context, tenantID, id, versionID string, result []byte, at time.Time) error {
	return r.update(tenantID, id, func(in *models.UploadIntent) {
		in.Status = models.IntentFinalized
		in.DocumentVersionID = versionID
		in.Result = append([]byte(nil), result...)
		in.FinalizedAt = &at
		in.UpdatedAt = at
		in.LastError = ""
	})
}

func (r intentRepo) MarkFailed(_ context.Context, tenantID, id, lastError string, result []byte, at time.Time) error {
	return r.update(tenantID, id, func(in *models.UploadIntent) {
		in.Status = models.IntentFailed
		in.LastError = lastError
		in.Result = append([]byte(nil), result...)
		in.UpdatedAt = at
	})
}

func (r intentRepo) RecordError(_ context.Context, tenantID, id, lastError string, at time.Time) error {
	return r.update(tenantID, id, func(in *models.UploadIntent) {
		in.LastError = lastError
		in.UpdatedAt = at
	})
}

func (r intentRepo) MarkCleaned(_ context.Context, tenantID, id string, at time.Time) error {
	return r.do(func(st *state) error {
		in, ok := st.intents[id]
		if !ok || in.TenantID != tenantID || in.CleanedAt != nil {
			return common.ErrorNotFound
		}
		in.CleanedAt = &at
		in.UpdatedAt = at
		st.intents[id] = in
		return nil
	})
}

// newestFirst orders like the SQL listing: created_at DESC, id DESC.
func newestFirst(list []*models.UploadIntent) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

func (r intentRepo) List(_ context.Context, f intents.Filter) ([]*models.UploadIntent, error) {
	var all []*models.UploadIntent
	var cursor *models.UploadIntent
	q := strings.ToLower(strings.TrimSpace(f.Query))

	err := r.do(func(st *state) error {
		if c, ok := st.intents[f.Cursor]; ok && c.TenantID == f.TenantID {
			cursor = copyIntent(c)
		}
		for _, in := range st.intents {
			if in.TenantID != f.TenantID {
				continue
			}
			if f.Status != "" && in.Status != f.Status {
				continue
			}
			if q != "" && !matchesQuery(in, q) {
				continue
			}
			all = append(all, copyIntent(in))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	newestFirst(all)

	out := all[:0]
	for _, in := range all {
		if f.Cursor != "" {
			if cursor == nil {
				break
			}
			if !in.CreatedAt.Before(cursor.CreatedAt) && !(in.CreatedAt.Equal(cursor.CreatedAt) && in.ID < cursor.ID) {
				continue
			}
		}
		out = append(out, in)
		if f.Take > 0 && len(out) == f.Take {
			break
		}
	}
	return out, nil
}

func matchesQuery(in models.UploadIntent, q string) bool {
	for _, field := range []string{in.Key, in.FileName, in.LastError, in.ID, in.DocumentID} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (r intentRepo) CountByStatus(_ context.Context, tenantID string) (map[models.IntentStatus]int, error) {
	counts := map[models.IntentStatus]int{
		models.IntentInitiated: 0,
		models.IntentFinalized: 0,
		models.IntentFailed:    0,
	}
	err := r.do(func(st *state) error {
		for _, in := range st.intents {
			if in.TenantID == tenantID {
				counts[in.Status]++
			}
		}
		return nil
	})
	return counts, err
}

func (r intentRepo) ListStale(_ context.Context, tenantID string, cutoff time.Time, take int) ([]*models.UploadIntent, error) {
	var out []*models.UploadIntent
	err := r.do(func(st *state) error {
		for _, in := range st.intents {
			if tenantID != "" && in.TenantID != tenantID {
				continue
			}
			if in.Status == models.IntentFinalized || in.CleanedAt != nil || !in.ExpiresAt.Before(cutoff) {
				continue
			}
			out = append(out, copyIntent(in))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if take > 0 && len(out) > take {
		out = out[:take]
	}
	return out, err
}
