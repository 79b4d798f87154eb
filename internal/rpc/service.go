// Package rpc declares the Journal gRPC service without generated code.
// Every method except Ping exchanges a structpb.Struct whose fields are the
// JSON form of one of the message types in messages.go.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gophjournal.v1.Journal"

const (
	MethodRegister        = "Register"
	MethodGetSalt         = "GetSalt"
	MethodLogin           = "Login"
	MethodRefreshToken    = "RefreshToken"
	MethodPing            = "Ping"
	MethodSetDocument     = "SetDocument"
	MethodUpdateDocument  = "UpdateDocument"
	MethodGetDocument     = "GetDocument"
	MethodQueryDocuments  = "QueryDocuments"
	MethodListDocuments   = "ListDocuments"
	MethodCountDocuments  = "CountDocuments"
	MethodPresignUpload   = "PresignUpload"
	MethodPresignDownload = "PresignDownload"
	MethodDeleteMedia     = "DeleteMedia"
)

// FullMethod returns the "/service/method" name used by interceptors and
// ClientConn.Invoke.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Public methods need no access token.
var publicMethods = map[string]bool{
	FullMethod(MethodRegister):     true,
	FullMethod(MethodGetSalt):      true,
	FullMethod(MethodLogin):        true,
	FullMethod(MethodRefreshToken): true,
	FullMethod(MethodPing):         true,
}

// RequiresAuth reports whether fullMethod needs an access token.
func RequiresAuth(fullMethod string) bool {
	return !publicMethods[fullMethod]
}

// JournalServer is implemented by the server's gRPC layer.
type JournalServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)

	SetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CountDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)

	PresignUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PresignDownload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteMedia(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(JournalServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func structMethod(name string, call structCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JournalServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(JournalServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func pingMethod() grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: MethodPing,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(JournalServer).Ping(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(MethodPing)}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(JournalServer).Ping(ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Journal service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JournalServer)(nil),
	Methods: []grpc.MethodDesc{
		structMethod(MethodRegister, JournalServer.Register),
		structMethod(MethodGetSalt, JournalServer.GetSalt),
		structMethod(MethodLogin, JournalServer.Login),
		structMethod(MethodRefreshToken, JournalServer.RefreshToken),
		pingMethod(),
		structMethod(MethodSetDocument, JournalServer.SetDocument),
		structMethod(MethodUpdateDocument, JournalServer.UpdateDocument),
		structMethod(MethodGetDocument, JournalServer.GetDocument),
		structMethod(MethodQueryDocuments, JournalServer.QueryDocuments),
		structMethod(MethodListDocuments, JournalServer.ListDocuments),
		structMethod(MethodCountDocuments, JournalServer.CountDocuments),
		structMethod(MethodPresignUpload, JournalServer.PresignUpload),
		structMethod(MethodPresignDownload, JournalServer.PresignDownload),
		structMethod(MethodDeleteMedia, JournalServer.DeleteMedia),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophjournal/v1/journal",
}

// RegisterJournalServer attaches srv to s.
func RegisterJournalServer(s grpc.ServiceRegistrar, srv JournalServer) {
	s.RegisterService(&ServiceDesc, srv)
}
