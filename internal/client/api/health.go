package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the service the server registers with the gRPC
// health endpoint.
const HealthServiceName = "staffkeeper.Accounts"

// HealthProbe asks the server's gRPC health endpoint whether the account
// service is serving.
type HealthProbe struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewHealthProbe dials target lazily; no connection is made until the
// first Check.
func NewHealthProbe(target string, opts ...grpc.DialOption) (*HealthProbe, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &HealthProbe{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

// Check returns nil when the service reports SERVING and an error wrapping
// ErrUnavailable otherwise.
func (p *HealthProbe) Check(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthServiceName})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (p *HealthProbe) Close() error {
	return p.conn.Close()
}
