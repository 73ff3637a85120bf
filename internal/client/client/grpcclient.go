package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{endpointURL: endpointURL, conn: conn}, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, wire.MethodPing, wire.Status("PING"), resp); err != nil {
		return s.mapError(err)
	}
	if wire.StatusOf(resp) != "OK" {
		return common.ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) PushBatch(ctx context.Context, token string, docs []wire.Document) (wire.BatchAck, error) {
	req, err := wire.EncodeBatch(docs)
	if err != nil {
		return wire.BatchAck{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	resp := new(structpb.Struct)
	if err := s.conn.Invoke(withAccessToken(ctx, token), wire.MethodPushBatch, req, resp); err != nil {
		return wire.BatchAck{}, s.mapError(err)
	}

	ack, err := wire.AckFromStruct(resp)
	if err != nil {
		return wire.BatchAck{}, fmt.Errorf("%w: %v", common.ErrRemote, err)
	}
	return ack, nil
}

func (s *GRPCClient) Push(ctx context.Context, token string, doc wire.Document) error {
	req, err := doc.ToStruct()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	resp := new(structpb.Struct)
	if err := s.conn.Invoke(withAccessToken(ctx, token), wire.MethodPush, req, resp); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", common.ErrUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("%w: rpc error: %v", common.ErrRemote, err)
	}
}
