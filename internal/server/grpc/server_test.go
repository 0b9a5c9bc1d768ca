package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/chinbo/chinbo-server/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeBroker struct {
	started chan struct{}
	done    chan struct{}
}

func newFakeBroker(running bool) *fakeBroker {
	b := &fakeBroker{started: make(chan struct{}), done: make(chan struct{})}
	if running {
		close(b.started)
	}
	return b
}

func (b *fakeBroker) Started() <-chan struct{} { return b.started }
func (b *fakeBroker) Done() <-chan struct{}    { return b.done }

func startBufconn(t *testing.T, broker Lifecycle) (*HealthServer, healthpb.HealthClient, context.CancelFunc, <-chan error) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewHealthServer("bufnet", logging.Nop{}, broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		cancel()
	})

	return srv, healthpb.NewHealthClient(conn), cancel, done
}

func TestHealth_ServingWhileRunning(t *testing.T) {
	t.Parallel()

	_, client, _, _ := startBufconn(t, newFakeBroker(true))

	for _, service := range []string{"", ServiceBroker} {
		assert.Eventually(t, func() bool {
			return checkStatus(t, client, service) == healthpb.HealthCheckResponse_SERVING
		}, 2*time.Second, 10*time.Millisecond, service)
	}
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Logf("check %q: %v", service, err)
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func TestHealth_BrokerStatusFollowsLifecycle(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker(false)
	_, client, _, _ := startBufconn(t, broker)

	assert.Eventually(t, func() bool {
		return checkStatus(t, client, "") == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, ServiceBroker))

	close(broker.started)
	assert.Eventually(t, func() bool {
		return checkStatus(t, client, ServiceBroker) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	close(broker.done)
	assert.Eventually(t, func() bool {
		return checkStatus(t, client, ServiceBroker) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, ""))
}

func TestHealth_NotServingAfterStop(t *testing.T) {
	t.Parallel()

	srv, client, stop, done := startBufconn(t, newFakeBroker(true))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}

	resp, err := srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceBroker})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewHealthServer("127.0.0.1:0", logging.Nop{}, newFakeBroker(true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "Run returned error on graceful stop")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewHealthServer("127.0.0.1:99999", logging.Nop{}, newFakeBroker(true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.Error(t, srv.Run(ctx))
}
