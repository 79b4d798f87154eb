// Package grpc exposes the journal services over the gophjournal.v1.Journal
// gRPC service.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/rpc"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
	"github.com/dmitrijs2005/gophjournal/internal/server/services"
)

type userSvc interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifierCandidate []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type documentSvc interface {
	Set(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any, merge bool) error
	Update(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any) error
	Get(ctx context.Context, userID string, ref docstore.Ref) (docstore.Document, error)
	Query(ctx context.Context, userID string, q docstore.Query) ([]docstore.Document, error)
	ListIDs(ctx context.Context, userID, collection string) ([]string, error)
	Count(ctx context.Context, userID, collection string, filters []docstore.Filter) (int64, error)
}

type mediaSvc interface {
	PresignUpload(ctx context.Context, userID, key string) (string, error)
	PresignDownload(ctx context.Context, userID, key string) (string, error)
	DeletePrefix(ctx context.Context, userID, prefix string) (int, error)
}

type GRPCServer struct {
	address   string
	users     userSvc
	documents documentSvc
	media     mediaSvc
	logger    logging.Logger
	jwtSecret []byte
}

var _ rpc.JournalServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us userSvc, ds documentSvc, ms mediaSvc, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		documents: ds,
		media:     ms,
		jwtSecret: []byte(secretKey),
	}
}

// newServer builds a grpc.Server with the interceptor chain and the
// Journal service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterJournalServer(srv, s)
	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {

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

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
