package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/netx"
	"github.com/dmitrijs2005/gophjournal/internal/rpc"
)

// TokenSink persists a refreshed token pair.
type TokenSink func(ctx context.Context, accessToken, refreshToken string) error

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	cc          grpc.ClientConnInterface
	http        *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onRefresh    TokenSink
}

var _ docstore.Store = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if !rpc.RequiresAuth(method) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	used, _ := s.Tokens()
	err := invoker(withAccessToken(ctx, used), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	fresh, rerr := s.refresh(ctx, used)
	if rerr != nil {
		return err
	}

	// tokens refreshed, retry once with the new access token
	return invoker(withAccessToken(ctx, fresh), method, req, reply, cc, opts...)
}

// refresh exchanges the refresh token unless another call already did so
// after used was issued, and returns the current access token.
func (s *GRPCClient) refresh(ctx context.Context, used string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != used {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", common.ErrUnauthorized
	}

	var resp rpc.RefreshTokenResponse
	if err := s.invoke(ctx, rpc.MethodRefreshToken, &rpc.RefreshTokenRequest{RefreshToken: s.refreshToken}, &resp); err != nil {
		return "", err
	}

	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	if s.onRefresh != nil {
		if err := s.onRefresh(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
			return "", err
		}
	}
	return s.accessToken, nil
}

func NewGRPCClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, http: &http.Client{Timeout: 5 * time.Minute}}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.cc = conn
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// SetTokens installs a token pair, e.g. one restored from local metadata.
func (s *GRPCClient) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
}

func (s *GRPCClient) Tokens() (accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// OnTokensRefreshed registers f to persist tokens rotated by the
// interceptor.
func (s *GRPCClient) OnTokensRefreshed(f TokenSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = f
}

// invoke sends in as a Struct and decodes the reply into out, which may be
// nil for calls that only acknowledge.
func (s *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	req, err := rpc.Encode(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := s.cc.Invoke(ctx, rpc.FullMethod(method), req, resp); err != nil {
		return s.mapError(err)
	}
	if out == nil {
		return nil
	}
	return rpc.Decode(resp, out)
}

func (s *GRPCClient) Register(ctx context.Context, userName string, salt []byte, verifier []byte) (string, error) {
	var resp rpc.RegisterResponse
	if err := s.invoke(ctx, rpc.MethodRegister, &rpc.RegisterRequest{Username: userName, Salt: salt, Verifier: verifier}, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

func (s *GRPCClient) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	var resp rpc.GetSaltResponse
	if err := s.invoke(ctx, rpc.MethodGetSalt, &rpc.GetSaltRequest{Username: userName}, &resp); err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

// Login authenticates and keeps the issued tokens for later calls.
func (s *GRPCClient) Login(ctx context.Context, userName string, verifier []byte) (*rpc.LoginResponse, error) {
	var resp rpc.LoginResponse
	if err := s.invoke(ctx, rpc.MethodLogin, &rpc.LoginRequest{Username: userName, Verifier: verifier}, &resp); err != nil {
		return nil, err
	}
	s.SetTokens(resp.AccessToken, resp.RefreshToken)
	return &resp, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	if err := s.cc.Invoke(ctx, rpc.FullMethod(rpc.MethodPing), &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Set(ctx context.Context, ref docstore.Ref, fields map[string]any, merge bool) error {
	return s.invoke(ctx, rpc.MethodSetDocument, &rpc.SetDocumentRequest{Ref: ref, Fields: fields, Merge: merge}, nil)
}

func (s *GRPCClient) Update(ctx context.Context, ref docstore.Ref, fields map[string]any) error {
	return s.invoke(ctx, rpc.MethodUpdateDocument, &rpc.UpdateDocumentRequest{Ref: ref, Fields: fields}, nil)
}

func (s *GRPCClient) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	var resp rpc.GetDocumentResponse
	if err := s.invoke(ctx, rpc.MethodGetDocument, &rpc.GetDocumentRequest{Ref: ref}, &resp); err != nil {
		return docstore.Document{}, err
	}
	return resp.Document, nil
}

func (s *GRPCClient) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	var resp rpc.QueryDocumentsResponse
	if err := s.invoke(ctx, rpc.MethodQueryDocuments, &rpc.QueryDocumentsRequest{Query: q}, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (s *GRPCClient) ListDocuments(ctx context.Context, collection string) ([]string, error) {
	var resp rpc.ListDocumentsResponse
	if err := s.invoke(ctx, rpc.MethodListDocuments, &rpc.ListDocumentsRequest{Collection: collection}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (s *GRPCClient) Count(ctx context.Context, collection string, filters []docstore.Filter) (int64, error) {
	var resp rpc.CountDocumentsResponse
	if err := s.invoke(ctx, rpc.MethodCountDocuments, &rpc.CountDocumentsRequest{Collection: collection, Filters: filters}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Upload PUTs a local file to a presigned URL for key.
func (s *GRPCClient) Upload(ctx context.Context, key, localPath string) error {
	var resp rpc.PresignResponse
	if err := s.invoke(ctx, rpc.MethodPresignUpload, &rpc.PresignRequest{Key: key}, &resp); err != nil {
		return err
	}
	return netx.UploadFile(ctx, s.http, resp.URL, localPath)
}

// Download fetches key into localPath. A missing object is ErrNotFound.
func (s *GRPCClient) Download(ctx context.Context, key, localPath string) error {
	var resp rpc.PresignResponse
	if err := s.invoke(ctx, rpc.MethodPresignDownload, &rpc.PresignRequest{Key: key}, &resp); err != nil {
		return err
	}
	return netx.DownloadFile(ctx, s.http, resp.URL, localPath)
}

func (s *GRPCClient) Delete(ctx context.Context, prefix string) (int, error) {
	var resp rpc.DeleteMediaResponse
	if err := s.invoke(ctx, rpc.MethodDeleteMedia, &rpc.DeleteMediaRequest{Prefix: prefix}, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return common.ErrUnavailable
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", common.ErrAlreadyExists, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrInvalidArgument, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
