// Package grpc exposes the goal store over gRPC using the wire package's
// service description.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"github.com/dmitrijs2005/goalkeeper/internal/server/services"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address   string
	goals     *services.GoalService
	logger    logging.Logger
	jwtSecret []byte
	clock     clock.Clock
}

func NewGRPCServer(a string, l logging.Logger, gs *services.GoalService, secretKey string, clk clock.Clock) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		goals:     gs,
		jwtSecret: []byte(secretKey),
		clock:     clk,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	wire.RegisterGoalStoreServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
