// Package uploadapi describes the DocumentUploadService wire contract shared
// by the gRPC server and the uploader client.
//
// Messages travel as google.protobuf.Struct values whose fields carry the
// camelCase names below, so any gRPC client can call the service without
// generated stubs. upload.proto describes the service in protobuf terms.
package uploadapi

import "time"

const ServiceName = "casevault.upload.v1.DocumentUploadService"

// Full method names as seen by interceptors and conn.Invoke.
const (
	MethodInitiateUpload       = "/" + ServiceName + "/InitiateUpload"
	MethodFinalizeUpload       = "/" + ServiceName + "/FinalizeUpload"
	MethodListDocumentVersions = "/" + ServiceName + "/ListDocumentVersions"
	MethodGetDownloadURL       = "/" + ServiceName + "/GetDownloadURL"
)

// DocumentMeta is optional descriptive metadata merged into the document on
// commit.
type DocumentMeta struct {
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// InitiateUploadRequest names either an existing document or a case for a
// new one.
type InitiateUploadRequest struct {
	DocumentID  string `json:"documentId,omitempty"`
	CaseID      string `json:"caseId,omitempty"`
	FileName    string `json:"filename"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType,omitempty"`
	DocumentMeta
}

type InitiateUploadResponse struct {
	IntentID            string    `json:"intentId"`
	UploadURL           string    `json:"uploadUrl"`
	Key                 string    `json:"key"`
	CaseID              string    `json:"caseId"`
	DocumentID          string    `json:"documentId"`
	ExpectedVersion     int       `json:"expectedVersion"`
	ExpectedFileSize    int64     `json:"expectedFileSize"`
	ExpectedContentType string    `json:"expectedContentType"`
	ExpiresAt           time.Time `json:"expiresAt"`
	FileName            string    `json:"filename"`
	DocumentMeta
}

// FinalizeUploadRequest echoes the initiate response back once the bytes are
// stored.
type FinalizeUploadRequest struct {
	IntentID            string `json:"intentId,omitempty"`
	CaseID              string `json:"caseId,omitempty"`
	DocumentID          string `json:"documentId"`
	ExpectedVersion     int    `json:"expectedVersion"`
	Key                 string `json:"key"`
	FileName            string `json:"filename"`
	ExpectedFileSize    int64  `json:"expectedFileSize,omitempty"`
	ExpectedContentType string `json:"expectedContentType,omitempty"`
	DocumentMeta
}

type FinalizeUploadResponse struct {
	DocumentID       string `json:"documentId"`
	Version          int    `json:"version"`
	VersionID        string `json:"versionId"`
	AlreadyFinalized bool   `json:"alreadyFinalized,omitempty"`
}

type ListDocumentVersionsRequest struct {
	DocumentID string `json:"documentId"`
}

type DocumentVersion struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"documentId"`
	Version     int       `json:"version"`
	FileName    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	FileSize    int64     `json:"fileSize"`
	UploaderID  string    `json:"uploaderId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ListDocumentVersionsResponse struct {
	Versions []DocumentVersion `json:"versions"`
}

type GetDownloadURLRequest struct {
	VersionID string `json:"versionId"`
}

type GetDownloadURLResponse struct {
	URL      string `json:"url"`
	FileName string `json:"filename"`
}
