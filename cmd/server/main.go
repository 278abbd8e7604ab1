package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"appointment-manager/internal/appointment"
	"appointment-manager/internal/config"
	gweb "appointment-manager/internal/grpcweb"
	"appointment-manager/internal/handler"
	"appointment-manager/internal/middleware"
	"appointment-manager/internal/rpc"
	"appointment-manager/internal/store"
	"appointment-manager/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.AuthEnabled() {
		log.Println("JWT_SECRET not set, requests are not authenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// tracing
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.ProviderConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	// metrics and span log
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)
	logger := telemetry.NewLogger(
		telemetry.NewExporter(os.Stdout, telemetry.WithExportMetrics(metrics)),
		telemetry.WithMetrics(metrics),
	)

	// store
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeBackend()
	svc := appointment.NewService(backend)

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// grpc server
	srv := grpc.NewServer(
		grpc.ForceServerCodec(rpc.Codec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.RequestID(),
			middleware.RateLimit(rl),
			middleware.Auth(cfg.JWTSecret),
		),
	)
	rpc.Register(srv, rpc.NewServer(svc, logger))

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	conn, err := grpc.NewClient("localhost:"+cfg.GRPCPort,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		log.Fatalf("bridge: %v", err)
	}
	defer conn.Close()

	// http: REST routes behind auth, metrics and the bridge beside them
	api := http.NewServeMux()
	handler.New(svc, logger, rl).Routes(api)

	mux := http.NewServeMux()
	mux.Handle("/", middleware.RequireToken(cfg.JWTSecret)(api))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/"+rpc.ServiceName+"/", gweb.New(conn).Handler())

	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("grpc on :%s", cfg.GRPCPort)
		return srv.Serve(lis)
	})
	g.Go(func() error {
		log.Printf("http on :%s", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return rl.Run(gctx) })

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		srv.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}
}

// openBackend returns the configured store backend and its close func.
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Println("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	log.Println("connected to postgres")

	// run migrations
	if migration, err := os.ReadFile(cfg.MigrationsFile); err != nil {
		log.Printf("migration file not found, skipping: %v", err)
	} else if _, err := pool.Exec(ctx, string(migration)); err != nil {
		log.Printf("migration warning: %v", err)
	} else {
		log.Println("migration applied")
	}

	return store.NewPostgres(pool), pool.Close, nil
}
