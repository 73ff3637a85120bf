package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return wire.Status("OK"), nil
}

func (s *GRPCServer) PushBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, ok := ownerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	docs, err := wire.DecodeBatch(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ack, err := s.goals.PushBatch(ctx, owner, docs)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp, err := ack.ToStruct()
	if err != nil {
		s.logger.Error(ctx, "encode ack", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

func (s *GRPCServer) Push(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, ok := ownerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	doc, err := wire.DocumentFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.goals.Push(ctx, owner, doc); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wire.Status("OK"), nil
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}
