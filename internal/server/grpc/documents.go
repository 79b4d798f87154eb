package grpc

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophjournal/internal/rpc"
)

func (s *GRPCServer) SetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.SetDocumentRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodSetDocument, err)
	}
	if err := s.documents.Set(ctx, userIDFrom(ctx), req.Ref, req.Fields, req.Merge); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodSetDocument, err)
	}
	return s.respond(ctx, rpc.Ack{})
}

func (s *GRPCServer) UpdateDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.UpdateDocumentRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodUpdateDocument, err)
	}
	if err := s.documents.Update(ctx, userIDFrom(ctx), req.Ref, req.Fields); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodUpdateDocument, err)
	}
	return s.respond(ctx, rpc.Ack{})
}

func (s *GRPCServer) GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.GetDocumentRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodGetDocument, err)
	}
	doc, err := s.documents.Get(ctx, userIDFrom(ctx), req.Ref)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodGetDocument, err)
	}
	return s.respond(ctx, rpc.GetDocumentResponse{Document: doc})
}

func (s *GRPCServer) QueryDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.QueryDocumentsRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodQueryDocuments, err)
	}
	docs, err := s.documents.Query(ctx, userIDFrom(ctx), req.Query)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodQueryDocuments, err)
	}
	return s.respond(ctx, rpc.QueryDocumentsResponse{Documents: docs})
}

func (s *GRPCServer) ListDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.ListDocumentsRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodListDocuments, err)
	}
	ids, err := s.documents.ListIDs(ctx, userIDFrom(ctx), req.Collection)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodListDocuments, err)
	}
	return s.respond(ctx, rpc.ListDocumentsResponse{IDs: ids})
}

func (s *GRPCServer) CountDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.CountDocumentsRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodCountDocuments, err)
	}
	n, err := s.documents.Count(ctx, userIDFrom(ctx), req.Collection, req.Filters)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodCountDocuments, err)
	}
	return s.respond(ctx, rpc.CountDocumentsResponse{Count: n})
}
