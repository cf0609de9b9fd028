package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"github.com/dmitrijs2005/casevault/internal/uploadapi"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeRequest returns the authenticated caller and fills req from in.
func (s *GRPCServer) decodeRequest(ctx context.Context, in *structpb.Struct, req any) (auth.Caller, error) {
	caller, err := auth.CallerFrom(ctx)
	if err != nil {
		return auth.Caller{}, s.toStatus(ctx, err)
	}
	if err := uploadapi.Decode(in, req); err != nil {
		return auth.Caller{}, s.toStatus(ctx, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	return caller, nil
}

func (s *GRPCServer) encodeResponse(ctx context.Context, resp any) (*structpb.Struct, error) {
	out, err := uploadapi.Encode(resp)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) InitiateUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req uploadapi.InitiateUploadRequest
	caller, err := s.decodeRequest(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	res, err := s.uploads.InitiateUpload(ctx, caller, services.InitiateRequest{
		DocumentID:   req.DocumentID,
		CaseID:       req.CaseID,
		FileName:     req.FileName,
		FileSize:     req.FileSize,
		ContentType:  req.ContentType,
		DocumentMeta: services.DocumentMeta(req.DocumentMeta),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.encodeResponse(ctx, uploadapi.InitiateUploadResponse{
		IntentID:            res.IntentID,
		UploadURL:           res.UploadURL,
		Key:                 res.Key,
		CaseID:              res.CaseID,
		DocumentID:          res.DocumentID,
		ExpectedVersion:     res.ExpectedVersion,
		ExpectedFileSize:    res.ExpectedFileSize,
		ExpectedContentType: res.ExpectedContentType,
		ExpiresAt:           res.ExpiresAt,
		FileName:            res.FileName,
		DocumentMeta:        uploadapi.DocumentMeta(res.DocumentMeta),
	})
}

func (s *GRPCServer) FinalizeUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req uploadapi.FinalizeUploadRequest
	caller, err := s.decodeRequest(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	res, err := s.uploads.FinalizeUpload(ctx, caller, services.FinalizeRequest{
		IntentID:            req.IntentID,
		CaseID:              req.CaseID,
		DocumentID:          req.DocumentID,
		ExpectedVersion:     req.ExpectedVersion,
		Key:                 req.Key,
		FileName:            req.FileName,
		ExpectedFileSize:    req.ExpectedFileSize,
		ExpectedContentType: req.ExpectedContentType,
		DocumentMeta:        services.DocumentMeta(req.DocumentMeta),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.encodeResponse(ctx, uploadapi.FinalizeUploadResponse{
		DocumentID:       res.DocumentID,
		Version:          res.Version,
		VersionID:        res.VersionID,
		AlreadyFinalized: res.AlreadyFinalized,
	})
}

func (s *GRPCServer) ListDocumentVersions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req uploadapi.ListDocumentVersionsRequest
	caller, err := s.decodeRequest(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	versions, err := s.documents.ListVersions(ctx, caller, req.DocumentID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := uploadapi.ListDocumentVersionsResponse{Versions: make([]uploadapi.DocumentVersion, 0, len(versions))}
	for _, v := range versions {
		resp.Versions = append(resp.Versions, versionToWire(v))
	}
	return s.encodeResponse(ctx, resp)
}

func (s *GRPCServer) GetDownloadURL(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req uploadapi.GetDownloadURLRequest
	caller, err := s.decodeRequest(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	url, v, err := s.documents.DownloadURL(ctx, caller, req.VersionID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.encodeResponse(ctx, uploadapi.GetDownloadURLResponse{URL: url, FileName: v.FileName})
}

func versionToWire(v *models.DocumentVersion) uploadapi.DocumentVersion {
	return uploadapi.DocumentVersion{
		ID:          v.ID,
		DocumentID:  v.DocumentID,
		Version:     v.Version,
		FileName:    v.FileName,
		ContentType: v.ContentType,
		FileSize:    v.FileSize,
		UploaderID:  v.UploaderID,
		CreatedAt:   v.CreatedAt,
	}
}
