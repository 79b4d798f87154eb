package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophjournal/internal/rpc"
)

func (s *GRPCServer) respond(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.RegisterRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodRegister, err)
	}

	user, err := s.users.Register(ctx, req.Username, req.Salt, req.Verifier)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodRegister, err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username, "user_id", user.ID)
	return s.respond(ctx, rpc.RegisterResponse{UserID: user.ID})
}

func (s *GRPCServer) GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.GetSaltRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodGetSalt, err)
	}

	salt, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodGetSalt, err)
	}

	return s.respond(ctx, rpc.GetSaltResponse{Salt: salt})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.LoginRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodLogin, err)
	}

	tokens, err := s.users.Login(ctx, req.Username, req.Verifier)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodLogin, err)
	}

	s.logger.Info(ctx, "Signed in", "user_id", tokens.UserID)
	return s.respond(ctx, rpc.LoginResponse{
		UserID:       tokens.UserID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (s *GRPCServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.RefreshTokenRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodRefreshToken, err)
	}

	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodRefreshToken, err)
	}

	return s.respond(ctx, rpc.RefreshTokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}
