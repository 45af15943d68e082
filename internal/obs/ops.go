package obs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type OpsConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// OpsServer serves grpc.health.v1 plus an HTTP listener with /metrics and a
// gateway-backed /healthz.
type OpsServer struct {
	grpc *grpc.Server
	http *http.Server
	conn *grpc.ClientConn
	log  *zap.Logger
}

func StartOpsServer(cfg OpsConfig, hr *HealthReporter, l *zap.Logger) (*OpsServer, error) {
	log := l.With(zap.String("component", "obs.ops"))

	grpcMetrics := grpcprometheus.NewServerMetrics()
	opts := append(GRPCServerOpts(),
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	gs := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(gs, hr.Server())
	reflection.Register(gs)
	grpcMetrics.InitializeMetrics(gs)
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register grpc metrics: %w", err)
		}
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		log.Info("grpc ops listening", zap.String("addr", lis.Addr().String()))
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc ops server error", zap.Error(err))
		}
	}()

	conn, err := grpc.NewClient(dialTarget(lis.Addr()), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		gs.Stop()
		return nil, fmt.Errorf("dial grpc ops: %w", err)
	}

	gw := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", gw)

	hs := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	go func() {
		log.Info("http ops listening", zap.String("addr", cfg.HTTPAddr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http ops server error", zap.Error(err))
		}
	}()

	return &OpsServer{grpc: gs, http: hs, conn: conn, log: log}, nil
}

func (s *OpsServer) Shutdown(ctx context.Context) {
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Warn("http ops shutdown", zap.Error(err))
	}
	_ = s.conn.Close()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func dialTarget(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP.IsUnspecified() {
		return fmt.Sprintf("127.0.0.1:%d", tcp.Port)
	}
	return addr.String()
}
