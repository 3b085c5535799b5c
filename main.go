package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/assetmeta/internal/auth"
	"github.com/example/assetmeta/internal/classifier"
	"github.com/example/assetmeta/internal/config"
	"github.com/example/assetmeta/internal/grpcserver"
	"github.com/example/assetmeta/internal/handlers"
	"github.com/example/assetmeta/internal/logging"
	"github.com/example/assetmeta/internal/repository"
	"github.com/example/assetmeta/internal/worker"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "assetmeta",
		Short:        "Extract classifier metadata from assets",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", getEnv("ASSETMETA_CONFIG", ""), "path to a TOML defaults file")
	root.AddCommand(newServeCommand(), newProcessCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the job API and gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runServe(configPath)
		},
	}
}

func runServe(configPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	defaults, err := config.LoadDefaults(configPath)
	if err != nil {
		logger.Error("failed to load defaults", zap.Error(err), zap.String("path", configPath))
		return err
	}

	db := initDatabase(ctx, logger)
	repo := repository.NewJobRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, logger)
	defer redisClient.Close()

	w := worker.NewWorker(
		classifier.NewInvoker(),
		defaults,
		logger,
		worker.WithJobStore(worker.NewRedisCache(redisClient), repo),
	)

	verifier, err := auth.NewVerifier(getEnv("JWT_SECRET", "dev-secret"), os.Getenv("JWT_AUDIENCE"))
	if err != nil {
		logger.Error("invalid auth configuration", zap.Error(err))
		return err
	}

	r := gin.Default()
	roots := handlers.Roots{
		Assets: getEnv("ASSET_ROOT", "/var/lib/assetmeta/assets"),
		Output: getEnv("OUTPUT_ROOT", "/var/lib/assetmeta/output"),
	}
	handlers.RegisterRoutes(r, w, logger, verifier.Middleware(), roots)

	grpcAddr := getEnv("GRPC_ADDR", ":9090")
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", zap.Error(err), zap.String("addr", grpcAddr))
		return err
	}
	healthServer := grpcserver.NewHealthServer(logger)
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()

	httpAddr := getEnv("HTTP_ADDR", ":8080")
	server := &http.Server{
		Addr:    httpAddr,
		Handler: r,
	}
	server.RegisterOnShutdown(func() { healthServer.SetServing(false) })

	logger.Info("assetmeta API listening", zap.String("addr", httpAddr))
	serveErr := serveHTTPServer(server, 15*time.Second, logger)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	healthServer.Stop(stopCtx)

	if serveErr != nil {
		logger.Error("server failed", zap.Error(serveErr))
	}
	return serveErr
}

func initDatabase(ctx context.Context, zapLogger *zap.Logger) *gorm.DB {
	dsn := getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=assetmeta port=5432 sslmode=disable")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, zapLogger *zap.Logger) *redis.Client {
	addr := getEnv("REDIS_ADDR", "redis:6379")
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
