package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"ops-console/pkg/config"
)

// ServiceName gRPC 健康检查中的服务名
const ServiceName = "ops-console"

const healthCheckInterval = 10 * time.Second

// Pinger 健康检查依赖的存储连通性探测
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server 在同一端口上复用 HTTP 与 gRPC 健康检查
type Server struct {
	config *config.ServerConfig
	logger zerolog.Logger
	pinger Pinger

	listener   net.Listener
	mux        cmux.CMux
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建服务器实例，listener 为空时按配置监听
func New(cfg *config.ServerConfig, handler http.Handler, pinger Pinger, listener net.Listener, logger zerolog.Logger) (*Server, error) {
	if listener == nil {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("creating listener: %w", err)
		}
		listener = l
	}

	// TLS 在分流之前终止，两个协议共用同一证书
	if cfg.Server.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLS.Cert, cfg.Server.TLS.Key)
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("loading TLS certificate: %w", err)
		}
		listener = tls.NewListener(listener, &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"http/1.1"},
			MinVersion:   tls.VersionTLS12,
		})
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Second,
			MaxConnectionAge:      30 * time.Second,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  5 * time.Second,
			Timeout:               1 * time.Second,
		}),
	}

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		config:     cfg,
		logger:     logger,
		pinger:     pinger,
		listener:   listener,
		mux:        cmux.New(listener),
		grpcServer: grpcServer,
		httpServer: httpServer,
		health:     healthServer,
	}, nil
}

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start 启动服务器
func (s *Server) Start() error {
	grpcL := s.mux.MatchWithWriters(
		cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"),
	)
	httpL := s.mux.Match(cmux.Any())

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.updateHealth(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchHealth(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpcServer.Serve(grpcL); err != nil && !errors.Is(err, cmux.ErrListenerClosed) {
			s.logger.Error().Err(err).Msg("gRPC server error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.mux.Serve(); err != nil && !isClosedErr(err) {
			s.logger.Error().Err(err).Msg("cmux server error")
		}
	}()

	s.logger.Info().
		Str("address", s.listener.Addr().String()).
		Bool("tls", s.config.Server.TLS.Enabled).
		Msg("Server started")

	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	s.grpcServer.GracefulStop()

	if err := s.listener.Close(); err != nil && !isClosedErr(err) {
		s.logger.Error().Err(err).Msg("Error closing listener")
	}

	s.wg.Wait()

	s.logger.Info().Msg("Server stopped")
	return nil
}

// watchHealth 定期探测存储并更新 gRPC 健康状态
func (s *Server) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth(ctx)
		}
	}
}

func (s *Server) updateHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := s.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Store ping failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed)
}
