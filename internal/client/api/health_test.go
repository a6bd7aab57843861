package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealthServer(t *testing.T, status healthpb.HealthCheckResponse_ServingStatus) *HealthProbe {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	h := health.NewServer()
	h.SetServingStatus(HealthServiceName, status)
	healthpb.RegisterHealthServer(srv, h)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	probe, err := NewHealthProbe("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = probe.Close() })
	return probe
}

func TestHealthProbe_Serving(t *testing.T) {
	probe := startHealthServer(t, healthpb.HealthCheckResponse_SERVING)
	assert.NoError(t, probe.Check(context.Background()))
}

func TestHealthProbe_NotServing(t *testing.T) {
	probe := startHealthServer(t, healthpb.HealthCheckResponse_NOT_SERVING)
	err := probe.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHealthProbe_Unreachable(t *testing.T) {
	lis := bufconn.Listen(1024)
	require.NoError(t, lis.Close())

	probe, err := NewHealthProbe("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	defer probe.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, probe.Check(ctx), ErrUnavailable)
}
