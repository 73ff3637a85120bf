package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/client"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func startBufconn(t *testing.T, s *GRPCServer) *client.GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Serve(ctx, lis)
	}()

	c, err := client.NewGRPCClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		wg.Wait()
	})
	return c
}

func TestServer_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	c := startBufconn(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Ping(ctx))

	ack, err := c.PushBatch(ctx, tokenFor(t, "u1", time.Hour), []wire.Document{testDoc("g1", "u1"), testDoc("g2", "u1")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, ack.Accepted)

	require.NoError(t, c.Push(ctx, tokenFor(t, "u1", time.Hour), testDoc("g3", "u1")))
}

func TestServer_EndToEndErrors(t *testing.T) {
	s := newTestServer(t)
	c := startBufconn(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.PushBatch(ctx, "garbage", []wire.Document{testDoc("g1", "u1")})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = c.PushBatch(ctx, tokenFor(t, "u1", time.Hour), []wire.Document{testDoc("g1", "u2")})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	bad := testDoc("g1", "u1")
	bad.Calories = 0
	err = c.Push(ctx, tokenFor(t, "u1", time.Hour), bad)
	assert.ErrorIs(t, err, common.ErrValidation)
}
