package grpc

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/uploadapi"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// uploadServer is the handler type dispatched to by uploadServiceDesc.
type uploadServer interface {
	InitiateUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FinalizeUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDocumentVersions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDownloadURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var uploadServiceDesc = grpc.ServiceDesc{
	ServiceName: uploadapi.ServiceName,
	HandlerType: (*uploadServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InitiateUpload", Handler: unaryHandler(uploadapi.MethodInitiateUpload, uploadServer.InitiateUpload)},
		{MethodName: "FinalizeUpload", Handler: unaryHandler(uploadapi.MethodFinalizeUpload, uploadServer.FinalizeUpload)},
		{MethodName: "ListDocumentVersions", Handler: unaryHandler(uploadapi.MethodListDocumentVersions, uploadServer.ListDocumentVersions)},
		{MethodName: "GetDownloadURL", Handler: unaryHandler(uploadapi.MethodGetDownloadURL, uploadServer.GetDownloadURL)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/uploadapi/upload.proto",
}

func unaryHandler(fullMethod string, call func(uploadServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(uploadServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(uploadServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
