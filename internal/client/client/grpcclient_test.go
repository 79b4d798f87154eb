package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/rpc"
)

/*************
 * Fake connection
 *************/

type fakeConn struct {
	reqs    map[string]*structpb.Struct
	replies map[string]any
	errs    map[string]error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reqs:    map[string]*structpb.Struct{},
		replies: map[string]any{},
		errs:    map[string]error{},
	}
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	if s, ok := args.(*structpb.Struct); ok {
		f.reqs[method] = s
	}
	if err := f.errs[method]; err != nil {
		return err
	}
	if v, ok := f.replies[method]; ok {
		s, err := rpc.Encode(v)
		if err != nil {
			return err
		}
		proto.Merge(reply.(proto.Message), s)
	}
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams are not used")
}

func (f *fakeConn) req(t *testing.T, method string, v any) {
	t.Helper()
	s, ok := f.reqs[rpc.FullMethod(method)]
	require.True(t, ok, "no %s call", method)
	require.NoError(t, rpc.Decode(s, v))
}

/*************
 * accessTokenInterceptor tests
 *************/

func TestInterceptor_RefreshesTokenOnExpiredAndRetries(t *testing.T) {
	f := newFakeConn()
	f.replies[rpc.FullMethod(rpc.MethodRefreshToken)] = rpc.RefreshTokenResponse{AccessToken: "A2", RefreshToken: "R2"}
	c := &GRPCClient{cc: f, accessToken: "A1", refreshToken: "R1"}

	var persisted []string
	c.OnTokensRefreshed(func(_ context.Context, a, r string) error {
		persisted = append(persisted, a, r)
		return nil
	})

	callCount := 0
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callCount++
		md, _ := metadata.FromOutgoingContext(ctx)
		toks := md.Get(common.AccessTokenHeaderName)
		require.Len(t, toks, 1)

		if callCount == 1 {
			require.Equal(t, "A1", toks[0])
			return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		require.Equal(t, "A2", toks[0])
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.FullMethod(rpc.MethodSetDocument), nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Equal(t, 2, callCount)
	a, r := c.Tokens()
	require.Equal(t, "A2", a)
	require.Equal(t, "R2", r)
	require.Equal(t, []string{"A2", "R2"}, persisted)

	var sent rpc.RefreshTokenRequest
	f.req(t, rpc.MethodRefreshToken, &sent)
	require.Equal(t, "R1", sent.RefreshToken)
}

func TestInterceptor_SkipsRefreshWhenAlreadyRotated(t *testing.T) {
	f := newFakeConn()
	c := &GRPCClient{cc: f, accessToken: "A2", refreshToken: "R2"}

	tok, err := c.refresh(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, "A2", tok)
	require.Empty(t, f.reqs)
}

func TestInterceptor_NoRefreshIfNoRefreshToken(t *testing.T) {
	f := newFakeConn()
	c := &GRPCClient{cc: f, accessToken: "A1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.FullMethod(rpc.MethodGetDocument), nil, nil, nil, invoker)
	require.Error(t, err)
	require.Empty(t, f.reqs)
}

func TestInterceptor_IgnoresOtherErrors(t *testing.T) {
	c := &GRPCClient{accessToken: "X"}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Internal, "boom")
	}
	err := c.accessTokenInterceptor(context.Background(), rpc.FullMethod(rpc.MethodGetDocument), nil, nil, nil, invoker)
	require.Error(t, err)
}

func TestInterceptor_UnauthenticatedButDifferentMessage_NoRefresh(t *testing.T) {
	f := newFakeConn()
	c := &GRPCClient{cc: f, accessToken: "X", refreshToken: "R"}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, "some other reason")
	}
	err := c.accessTokenInterceptor(context.Background(), rpc.FullMethod(rpc.MethodGetDocument), nil, nil, nil, invoker)
	require.Error(t, err)
	require.Empty(t, f.reqs)
}

func TestInterceptor_PublicMethodsCarryNoToken(t *testing.T) {
	c := &GRPCClient{accessToken: "X"}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		require.Empty(t, md.Get(common.AccessTokenHeaderName))
		return nil
	}
	require.NoError(t, c.accessTokenInterceptor(context.Background(), rpc.FullMethod(rpc.MethodLogin), nil, nil, nil, invoker))
}

/*************
 * mapError tests
 *************/

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	require.Equal(t, common.ErrUnauthorized, c.mapError(status.Error(codes.Unauthenticated, "x")))
	require.Equal(t, common.ErrUnauthorized, c.mapError(status.Error(codes.PermissionDenied, "x")))
	require.Equal(t, common.ErrUnavailable, c.mapError(status.Error(codes.Unavailable, "x")))
	require.Equal(t, common.ErrUnavailable, c.mapError(status.Error(codes.DeadlineExceeded, "x")))
	require.ErrorIs(t, c.mapError(status.Error(codes.NotFound, "x")), common.ErrNotFound)
	require.ErrorIs(t, c.mapError(status.Error(codes.AlreadyExists, "x")), common.ErrAlreadyExists)
	require.ErrorIs(t, c.mapError(status.Error(codes.InvalidArgument, "x")), common.ErrInvalidArgument)
	e := errors.New("plain")
	require.ErrorContains(t, c.mapError(e), "rpc error:")
}

/*************
 * Ping / GetSalt / Login / Register tests
 *************/

func TestPing(t *testing.T) {
	f := newFakeConn()
	c := &GRPCClient{cc: f}
	require.NoError(t, c.Ping(context.Background()))

	f.errs[rpc.FullMethod(rpc.MethodPing)] = status.Error(codes.Unavailable, "down")
	require.ErrorIs(t, c.Ping(context.Background()), common.ErrUnavailable)
}

func TestGetSalt_Success(t *testing.T) {
	f := newFakeConn()
	f.replies[rpc.FullMethod(rpc.MethodGetSalt)] = rpc.GetSaltResponse{Salt: []byte{1, 2, 3}}
	c := &GRPCClient{cc: f}

	salt, err := c.GetSalt(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, salt)

	var sent rpc.GetSaltRequest
	f.req(t, rpc.MethodGetSalt, &sent)
	require.Equal(t, "u", sent.Username)
}

func TestGetSalt_MapsError(t *testing.T) {
	f := newFakeConn()
	f.errs[rpc.FullMethod(rpc.MethodGetSalt)] = status.Error(codes.Unavailable, "x")
	c := &GRPCClient{cc: f}
	_, err := c.GetSalt(context.Background(), "u")
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestLogin_SetsTokens(t *testing.T) {
	f := newFakeConn()
	f.replies[rpc.FullMethod(rpc.MethodLogin)] = rpc.LoginResponse{UserID: "u1", AccessToken: "A", RefreshToken: "R"}
	c := &GRPCClient{cc: f}

	resp, err := c.Login(context.Background(), "u", []byte{9})
	require.NoError(t, err)
	require.Equal(t, "u1", resp.UserID)
	a, r := c.Tokens()
	require.Equal(t, "A", a)
	require.Equal(t, "R", r)

	var sent rpc.LoginRequest
	f.req(t, rpc.MethodLogin, &sent)
	require.Equal(t, "u", sent.Username)
	require.Equal(t, []byte{9}, sent.Verifier)
}

func TestRegister_MapsError(t *testing.T) {
	f := newFakeConn()
	f.errs[rpc.FullMethod(rpc.MethodRegister)] = status.Error(codes.AlreadyExists, "taken")
	c := &GRPCClient{cc: f}

	_, err := c.Register(context.Background(), "u", []byte{1}, []byte{2})
	require.ErrorIs(t, err, common.ErrAlreadyExists)

	var sent rpc.RegisterRequest
	f.req(t, rpc.MethodRegister, &sent)
	require.Equal(t, "u", sent.Username)
	require.Equal(t, []byte{1}, sent.Salt)
	require.Equal(t, []byte{2}, sent.Verifier)
}

/*************
 * Document store tests
 *************/

func TestSet_SendsMergeWrite(t *testing.T) {
	f := newFakeConn()
	c := &GRPCClient{cc: f}
	ref := docstore.Ref{Collection: "entries", ID: "e1"}

	require.NoError(t, c.Set(context.Background(), ref, map[string]any{"title": "Hi", "updatedAt": int64(1714554000000)}, true))

	var sent rpc.SetDocumentRequest
	f.req(t, rpc.MethodSetDocument, &sent)
	require.Equal(t, ref, sent.Ref)
	require.True(t, sent.Merge)
	require.Equal(t, "Hi", sent.Fields["title"])
	ms, ok := docstore.Int64(sent.Fields["updatedAt"])
	require.True(t, ok)
	require.Equal(t, int64(1714554000000), ms)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFakeConn()
	f.errs[rpc.FullMethod(rpc.MethodUpdateDocument)] = status.Error(codes.NotFound, "entries/e1")
	c := &GRPCClient{cc: f}

	err := c.Update(context.Background(), docstore.Ref{Collection: "entries", ID: "e1"}, map[string]any{"x": 1})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetQueryListCount(t *testing.T) {
	f := newFakeConn()
	doc := docstore.Document{ID: "e1", Data: map[string]any{"title": "Hi", "_deleted": false}}
	f.replies[rpc.FullMethod(rpc.MethodGetDocument)] = rpc.GetDocumentResponse{Document: doc}
	f.replies[rpc.FullMethod(rpc.MethodQueryDocuments)] = rpc.QueryDocumentsResponse{Documents: []docstore.Document{doc}}
	f.replies[rpc.FullMethod(rpc.MethodListDocuments)] = rpc.ListDocumentsResponse{IDs: []string{"e1", "e2"}}
	f.replies[rpc.FullMethod(rpc.MethodCountDocuments)] = rpc.CountDocumentsResponse{Count: 7}
	c := &GRPCClient{cc: f}
	ctx := context.Background()

	got, err := c.Get(ctx, docstore.Ref{Collection: "entries", ID: "e1"})
	require.NoError(t, err)
	require.Equal(t, doc, got)

	docs, err := c.Query(ctx, docstore.Query{Collection: "entries", Filters: []docstore.Filter{docstore.NotDeleted()}, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []docstore.Document{doc}, docs)
	var q rpc.QueryDocumentsRequest
	f.req(t, rpc.MethodQueryDocuments, &q)
	require.Equal(t, 10, q.Query.Limit)
	require.Equal(t, docstore.OpEq, q.Query.Filters[0].Op)

	ids, err := c.ListDocuments(ctx, "entries")
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2"}, ids)

	n, err := c.Count(ctx, "entries", []docstore.Filter{docstore.NotDeleted()})
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
}

/*************
 * Media tests
 *************/

func TestUploadDownloadDelete(t *testing.T) {
	var stored []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
		case http.MethodGet:
			if stored == nil {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(stored)
		}
	}))
	defer ts.Close()

	f := newFakeConn()
	f.replies[rpc.FullMethod(rpc.MethodPresignUpload)] = rpc.PresignResponse{URL: ts.URL + "/put"}
	f.replies[rpc.FullMethod(rpc.MethodPresignDownload)] = rpc.PresignResponse{URL: ts.URL + "/get"}
	f.replies[rpc.FullMethod(rpc.MethodDeleteMedia)] = rpc.DeleteMediaResponse{Deleted: 2}
	c := &GRPCClient{cc: f, http: ts.Client()}
	ctx := context.Background()
	dir := t.TempDir()

	dst := filepath.Join(dir, "out.jpg")
	require.ErrorIs(t, c.Download(ctx, "entries/e1/image.jpg", dst), common.ErrNotFound)

	src := filepath.Join(dir, "in.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0o600))
	require.NoError(t, c.Upload(ctx, "entries/e1/image.jpg", src))

	var sent rpc.PresignRequest
	f.req(t, rpc.MethodPresignUpload, &sent)
	require.Equal(t, "entries/e1/image.jpg", sent.Key)

	require.NoError(t, c.Download(ctx, "entries/e1/image.jpg", dst))
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(b))

	n, err := c.Delete(ctx, "entries/e1/")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
