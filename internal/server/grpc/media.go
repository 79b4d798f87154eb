package grpc

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophjournal/internal/rpc"
)

func (s *GRPCServer) PresignUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.PresignRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodPresignUpload, err)
	}
	url, err := s.media.PresignUpload(ctx, userIDFrom(ctx), req.Key)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodPresignUpload, err)
	}
	return s.respond(ctx, rpc.PresignResponse{URL: url})
}

func (s *GRPCServer) PresignDownload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.PresignRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodPresignDownload, err)
	}
	url, err := s.media.PresignDownload(ctx, userIDFrom(ctx), req.Key)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodPresignDownload, err)
	}
	return s.respond(ctx, rpc.PresignResponse{URL: url})
}

func (s *GRPCServer) DeleteMedia(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.DeleteMediaRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodDeleteMedia, err)
	}
	n, err := s.media.DeletePrefix(ctx, userIDFrom(ctx), req.Prefix)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodDeleteMedia, err)
	}
	return s.respond(ctx, rpc.DeleteMediaResponse{Deleted: n})
}
