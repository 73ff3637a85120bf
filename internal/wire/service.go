package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// GoalStoreServer is implemented by the goal store server.
type GoalStoreServer interface {
	Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Push(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	PushBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type call func(srv GoalStoreServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, fn call) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(GoalStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(GoalStoreServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes goalkeeper.v1.GoalStore for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GoalStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler:    unaryHandler(MethodPing, GoalStoreServer.Ping),
		},
		{
			MethodName: "Push",
			Handler:    unaryHandler(MethodPush, GoalStoreServer.Push),
		},
		{
			MethodName: "PushBatch",
			Handler:    unaryHandler(MethodPushBatch, GoalStoreServer.PushBatch),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "goalkeeper/v1/goalstore",
}

func RegisterGoalStoreServer(s grpc.ServiceRegistrar, srv GoalStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}
