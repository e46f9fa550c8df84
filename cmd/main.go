package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/chat"
	"github.com/cwrk-planet/chat-service/internal/pg"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/telemetry"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("chat-service failed", "err", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- tracing ---
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Logging.Service,
		Version:     cfg.Logging.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown", "err", err)
		}
	}()

	// --- postgres ---
	pool, err := pg.NewPool(ctx, pg.Config{
		DSN:               cfg.Postgres.DSN,
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
		ApplicationName:   cfg.Postgres.ApplicationName,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	// --- repos ---
	userRepo := postgres.NewUserRepository(pool)
	roomRepo := postgres.NewRoomRepository(pool)
	memberRepo := postgres.NewMembershipRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)

	// --- security ---
	tokens, err := security.NewJWT(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL, cfg.JWT.ClockSkew)
	if err != nil {
		return err
	}

	// --- services ---
	authSvc := service.NewAuthService(userRepo, tokens, security.BcryptConfig{
		Cost:      cfg.Password.BcryptCost,
		MinLength: cfg.Password.MinLength,
	}, time.Now)
	roomSvc := service.NewRoomService(roomRepo, memberRepo, messageRepo)

	// --- chat engine & WS ---
	engine := chat.NewEngine(roomRepo, memberRepo, messageRepo, chat.NewRegistry(slog.Default()), chat.Options{
		MaxMessageLength:        cfg.Chat.MaxMessageLength,
		RequireMembershipToSend: cfg.Chat.RequireMembershipToSend,
		Logger:                  slog.Default(),
	})
	wsServer := ws.NewServer(engine, tokens, ws.Options{
		QueueSize:      cfg.Chat.SendQueueSize,
		PingEvery:      cfg.Chat.PingEvery,
		WriteTimeout:   cfg.Chat.WriteTimeout,
		MaxFrameBytes:  cfg.Chat.MaxFrameBytes,
		AllowedOrigins: cfg.HTTP.CORSOrigins,
	}, slog.Default())

	// --- redis (опционально) ---
	routerCfg := httpx.RouterConfig{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		AuthLimit:   cfg.RateLimit.Auth,
		AuthWindow:  cfg.RateLimit.Window,
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			// лимитер fail-open, поэтому старт не блокируем
			slog.Warn("redis unavailable, rate limit degrades to allow", "addr", cfg.Redis.Addr, "err", err)
		}
		cancel()
		routerCfg.Limiter = httpmw.NewRedisLimiter(rdb, "chat:rl")
	}

	// --- HTTP ---
	handler := httpx.NewHandler(authSvc, roomSvc)
	router := httpx.NewRouter(handler, tokens, wsServer.HandleWS, routerCfg)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC (health + reflection) ---
	grpcSrv := grpcx.NewServer(0)

	// --- run both servers ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		return grpcSrv.GRPC.Serve(lis)
	})

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		grpcSrv.Drain()
		// закрываем WS-сессии до остановки HTTP: hijacked соединения Shutdown не ждёт
		engine.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		grpcSrv.Stop()
		return err
	})

	return g.Wait()
}
