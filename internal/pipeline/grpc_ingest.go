package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"graphout/internal/event"
	"graphout/internal/graphite"
)

const (
	// EventIngestService is the fully-qualified gRPC service name.
	EventIngestService = "graphout.v1.EventIngest"
	// GraphiteHealthService is the health-check name tracking the collector connection.
	GraphiteHealthService = "graphite"

	eventIngestPushMethod = "/" + EventIngestService + "/Push"
	grpcStopTimeout       = 5 * time.Second
)

// EventIngestServer accepts one event per Push call.
type EventIngestServer interface {
	Push(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
}

var eventIngestServiceDesc = grpc.ServiceDesc{
	ServiceName: EventIngestService,
	HandlerType: (*EventIngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: eventIngestPushHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "graphout/v1/ingest.proto",
}

// RegisterEventIngestServer registers impl on s.
func RegisterEventIngestServer(s grpc.ServiceRegistrar, impl EventIngestServer) {
	s.RegisterService(&eventIngestServiceDesc, impl)
}

func eventIngestPushHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EventIngestServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: eventIngestPushMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EventIngestServer).Push(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// EventIngestClient pushes events to an EventIngest server.
// Params: built by NewEventIngestClient.
// Returns: thin unary client.
type EventIngestClient struct {
	cc grpc.ClientConnInterface
}

// NewEventIngestClient wraps an existing connection.
func NewEventIngestClient(cc grpc.ClientConnInterface) *EventIngestClient {
	return &EventIngestClient{cc: cc}
}

// Push sends one event.
// Params: ctx rpc context; in event fields; opts call options.
// Returns: gRPC status error.
func (c *EventIngestClient) Push(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, eventIngestPushMethod, in, new(emptypb.Empty), opts...)
}

// eventIngestService converts pushed structs into events for the output queue.
type eventIngestService struct {
	queue  eventQueue
	logger *slog.Logger
}

// Push enqueues one event without waiting.
// Params: ctx rpc context; in event fields.
// Returns: InvalidArgument for empty events, ResourceExhausted when the queue is full.
func (s *eventIngestService) Push(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if in == nil || len(in.GetFields()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "event has no fields")
	}
	if err := s.queue.Offer(event.FromStruct(in)); err != nil {
		if errors.Is(err, ErrQueueFull) {
			s.logger.Warn("grpc ingest rejected event", slog.String("error", err.Error()))
			return nil, status.Error(codes.ResourceExhausted, err.Error())
		}
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &emptypb.Empty{}, nil
}

// grpcIngestServer serves EventIngest and the standard health service.
// Params: built by newGRPCIngestServer.
// Returns: runner tied to a lifecycle context.
type grpcIngestServer struct {
	ln     net.Listener
	server *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// newGRPCIngestServer binds listen and registers services; serving starts in run.
// Params: listen host:port; queue event target; healthSrv shared health server; logger root logger.
// Returns: server or bind error.
func newGRPCIngestServer(listen string, queue eventQueue, healthSrv *health.Server, logger *slog.Logger) (*grpcIngestServer, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", listen, err)
	}
	return newGRPCIngestServerOn(ln, queue, healthSrv, logger), nil
}

// newGRPCIngestServerOn registers services on an existing listener.
// Params: ln listener; queue event target; healthSrv shared health server; logger root logger.
// Returns: server.
func newGRPCIngestServerOn(ln net.Listener, queue eventQueue, healthSrv *health.Server, logger *slog.Logger) *grpcIngestServer {
	logger = logger.With(slog.String("input", "grpc"), slog.String("listen", ln.Addr().String()))

	server := grpc.NewServer()
	RegisterEventIngestServer(server, &eventIngestService{queue: queue, logger: logger})
	healthpb.RegisterHealthServer(server, healthSrv)
	healthSrv.SetServingStatus(EventIngestService, healthpb.HealthCheckResponse_SERVING)

	return &grpcIngestServer{ln: ln, server: server, health: healthSrv, logger: logger}
}

// run serves until ctx is canceled, then stops gracefully within grpcStopTimeout.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop; serve error otherwise.
func (s *grpcIngestServer) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.ln)
	}()
	s.logger.Info("grpc ingest listening")

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(grpcStopTimeout):
			s.server.Stop()
		}
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		s.logger.Error("grpc ingest server stopped unexpectedly", slog.String("error", err.Error()))
		return fmt.Errorf("grpc ingest: %w", err)
	}
}

// graphiteHealthObserver mirrors the collector connection state into healthSrv.
// Params: healthSrv health server.
// Returns: state callback for graphite.WithStateObserver.
func graphiteHealthObserver(healthSrv *health.Server) func(graphite.State) {
	healthSrv.SetServingStatus(GraphiteHealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return func(state graphite.State) {
		if state == graphite.StateConnected {
			healthSrv.SetServingStatus(GraphiteHealthService, healthpb.HealthCheckResponse_SERVING)
			return
		}
		healthSrv.SetServingStatus(GraphiteHealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}
