package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"google.golang.org/grpc"
)

// UploadCoordinator runs the two-phase upload protocol.
type UploadCoordinator interface {
	InitiateUpload(ctx context.Context, caller auth.Caller, req services.InitiateRequest) (*services.InitiateResult, error)
	FinalizeUpload(ctx context.Context, caller auth.Caller, req services.FinalizeRequest) (*services.FinalizeResult, error)
}

// DocumentReader serves version history and downloads.
type DocumentReader interface {
	ListVersions(ctx context.Context, caller auth.Caller, documentID string) ([]*models.DocumentVersion, error)
	DownloadURL(ctx context.Context, caller auth.Caller, versionID string) (string, *models.DocumentVersion, error)
}

type GRPCServer struct {
	address   string
	uploads   UploadCoordinator
	documents DocumentReader
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, uploads UploadCoordinator, documents DocumentReader, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		uploads:   uploads,
		documents: documents,
		jwtSecret: []byte(secretKey),
	}, nil
}

// newServer builds a gRPC server with the interceptor chain and the upload
// service registered.
func (s *GRPCServer) newServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	}, opts...)

	srv := grpc.NewServer(opts...)
	srv.RegisterService(&uploadServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
