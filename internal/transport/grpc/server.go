package grpcx

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName: имя сервиса в health-проверках.
const ServiceName = "chat-service"

type Server struct {
	GRPC   *grpc.Server
	health *health.Server
}

func NewServer(timeout time.Duration) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(timeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &Server{GRPC: gs, health: hs}
}

// Drain переводит health в NOT_SERVING: балансировщик снимает трафик до остановки.
func (s *Server) Drain() {
	s.health.Shutdown()
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.GRPC.GracefulStop()
}
