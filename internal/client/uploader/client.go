// Package uploader drives the two-phase upload from the client side:
// initiate, PUT the bytes to storage, then finalize.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/client/journal"
	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/netx"
	"github.com/dmitrijs2005/casevault/internal/uploadapi"
	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RetryPolicy bounds exponential backoff for transient failures. Retries
// counts repeats after the first call.
type RetryPolicy struct {
	Retries uint64
	Base    time.Duration
	Max     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 5, Base: 250 * time.Millisecond, Max: 4 * time.Second}
}

type Client struct {
	conn    grpc.ClientConnInterface
	token   string
	http    *http.Client
	retry   RetryPolicy
	journal Journal
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithRetryPolicy(p RetryPolicy) Option { return func(c *Client) { c.retry = p } }

// WithJournal records uploads between PUT and finalize so FinishPending can
// finish them later.
func WithJournal(j Journal) Option { return func(c *Client) { c.journal = j } }

func New(conn grpc.ClientConnInterface, token string, opts ...Option) *Client {
	c := &Client{
		conn:  conn,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Minute},
		retry: DefaultRetryPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dial connects to the upload service at endpoint without TLS.
func Dial(endpoint, token string, opts ...Option) (*Client, io.Closer, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return New(conn, token, opts...), conn, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := uploadapi.Encode(req)
	if err != nil {
		return err
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(withAccessToken(ctx, c.token), method, in, out); err != nil {
		return err
	}
	return uploadapi.Decode(out, resp)
}

// transient reports whether a call may succeed if repeated unchanged.
func transient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted:
		return true
	}
	var se *netx.StatusError
	return errors.As(err, &se) && se.Temporary()
}

func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(c.retry.Base)
	b = retry.WithMaxRetries(c.retry.Retries, b)
	if c.retry.Max > 0 {
		b = retry.WithCappedDuration(c.retry.Max, b)
	}
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) Initiate(ctx context.Context, req uploadapi.InitiateUploadRequest) (*uploadapi.InitiateUploadResponse, error) {
	var resp uploadapi.InitiateUploadResponse
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.invoke(ctx, uploadapi.MethodInitiateUpload, req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("initiate upload: %w", err)
	}
	return &resp, nil
}

// Finalize commits the stored object. Transient failures such as an object
// not yet visible in storage are retried; the call is idempotent.
func (c *Client) Finalize(ctx context.Context, req uploadapi.FinalizeUploadRequest) (*uploadapi.FinalizeUploadResponse, error) {
	var resp uploadapi.FinalizeUploadResponse
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.invoke(ctx, uploadapi.MethodFinalizeUpload, req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}
	return &resp, nil
}

func (c *Client) ListVersions(ctx context.Context, documentID string) ([]uploadapi.DocumentVersion, error) {
	var resp uploadapi.ListDocumentVersionsResponse
	if err := c.invoke(ctx, uploadapi.MethodListDocumentVersions, uploadapi.ListDocumentVersionsRequest{DocumentID: documentID}, &resp); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return resp.Versions, nil
}

func (c *Client) DownloadURL(ctx context.Context, versionID string) (*uploadapi.GetDownloadURLResponse, error) {
	var resp uploadapi.GetDownloadURLResponse
	if err := c.invoke(ctx, uploadapi.MethodGetDownloadURL, uploadapi.GetDownloadURLRequest{VersionID: versionID}, &resp); err != nil {
		return nil, fmt.Errorf("download url: %w", err)
	}
	return &resp, nil
}

// File is the local content to upload. Path is only recorded in the journal.
type File struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
	Body        io.ReadSeeker
}

// Target names the document to version, or the case for a new document.
type Target struct {
	CaseID     string
	DocumentID string
	uploadapi.DocumentMeta
}

// Upload runs the whole protocol for one file.
func (c *Client) Upload(ctx context.Context, f File, t Target) (*uploadapi.FinalizeUploadResponse, error) {
	intent, err := c.Initiate(ctx, uploadapi.InitiateUploadRequest{
		DocumentID:   strings.TrimSpace(t.DocumentID),
		CaseID:       strings.TrimSpace(t.CaseID),
		FileName:     f.Name,
		FileSize:     f.Size,
		ContentType:  strings.TrimSpace(f.ContentType),
		DocumentMeta: t.DocumentMeta,
	})
	if err != nil {
		return nil, err
	}

	contentType := intent.ExpectedContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err = c.withRetry(ctx, func(ctx context.Context) error {
		if _, err := f.Body.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return netx.PutPresigned(ctx, c.http, intent.UploadURL, f.Body, f.Size, contentType)
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	req := uploadapi.FinalizeUploadRequest{
		IntentID:            intent.IntentID,
		CaseID:              intent.CaseID,
		DocumentID:          intent.DocumentID,
		ExpectedVersion:     intent.ExpectedVersion,
		Key:                 intent.Key,
		FileName:            intent.FileName,
		ExpectedFileSize:    intent.ExpectedFileSize,
		ExpectedContentType: intent.ExpectedContentType,
		DocumentMeta:        intent.DocumentMeta,
	}

	// Journal errors do not fail the upload.
	if c.journal != nil {
		_ = c.journal.Save(ctx, journal.Entry{FilePath: f.Path, Request: req})
	}

	return c.finalizeJournaled(ctx, req)
}
