package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BattleServiceName is the health service name reported for the battle server.
const BattleServiceName = "idlebattle.Battle"

// Check probes a dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// HealthServer serves the standard gRPC health protocol and periodically
// probes a dependency to decide between SERVING and NOT_SERVING.
type HealthServer struct {
	addr     string
	check    Check
	interval time.Duration
	logger   *zap.Logger

	grpc   *grpc.Server
	health *health.Server

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHealthServer creates a HealthServer listening on addr. A nil check
// always reports SERVING.
//
// Precondition: logger must be non-nil; interval > 0 when check is non-nil.
func NewHealthServer(addr string, check Check, interval time.Duration, logger *zap.Logger) *HealthServer {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	s := &HealthServer{
		addr:     addr,
		check:    check,
		interval: interval,
		logger:   logger,
		grpc:     gs,
		health:   hs,
		stop:     make(chan struct{}),
	}
	s.setServing(true)
	return s
}

func (s *HealthServer) setServing(ok bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(BattleServiceName, status)
}

// Probe runs the dependency check once and updates the serving status.
func (s *HealthServer) Probe(ctx context.Context) error {
	if s.check == nil {
		return nil
	}
	err := s.check(ctx)
	s.setServing(err == nil)
	if err != nil {
		s.logger.Warn("health probe failed", zap.Error(err))
	}
	return err
}

func (s *HealthServer) monitor() {
	if s.check == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		_ = s.Probe(ctx)
		cancel()
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// Serve serves health RPCs on lis until Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	go s.monitor()
	s.logger.Info("health server listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Start listens on the configured address and serves.
func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

// Stop marks every service NOT_SERVING and stops the gRPC server.
func (s *HealthServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}
