package grpc

import (
	"context"
	"net"

	"github.com/chinbo/chinbo-server/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceBroker is the health service name of the realtime broker.
const ServiceBroker = "chinbo.Broker"

// Lifecycle reports when a component starts and stops running.
// *broker.Hub satisfies it.
type Lifecycle interface {
	Started() <-chan struct{}
	Done() <-chan struct{}
}

// HealthServer exposes grpc.health.v1.Health for load balancers and
// orchestrators. The overall status is SERVING while Run is active.
// ServiceBroker is SERVING only between the broker's start and stop.
type HealthServer struct {
	address string
	logger  logging.Logger
	health  *health.Server
	broker  Lifecycle
}

func NewHealthServer(a string, l logging.Logger, broker Lifecycle) *HealthServer {
	return &HealthServer{
		address: a,
		logger:  l.With("module", "grpc_health"),
		health:  health.NewServer(),
		broker:  broker,
	}
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceBroker, healthpb.HealthCheckResponse_NOT_SERVING)
	go s.watchBroker(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}

func (s *HealthServer) watchBroker(ctx context.Context) {
	select {
	case <-s.broker.Started():
	case <-ctx.Done():
		return
	}
	s.health.SetServingStatus(ServiceBroker, healthpb.HealthCheckResponse_SERVING)

	select {
	case <-s.broker.Done():
		s.logger.Warn(ctx, "broker stopped")
		s.health.SetServingStatus(ServiceBroker, healthpb.HealthCheckResponse_NOT_SERVING)
	case <-ctx.Done():
	}
}
