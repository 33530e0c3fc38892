package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	config "github.com/zainhoda/sij-manager-sub003/configs"
	"github.com/zainhoda/sij-manager-sub003/pkg/api"
	"github.com/zainhoda/sij-manager-sub003/pkg/api/middleware"
	"github.com/zainhoda/sij-manager-sub003/pkg/auth"
	"github.com/zainhoda/sij-manager-sub003/pkg/logger"
	tracing "github.com/zainhoda/sij-manager-sub003/pkg/observability"
	"github.com/zainhoda/sij-manager-sub003/pkg/planner"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/artifact"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/postgres"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/redis"
)

func main() {
	cfg := config.LoadConfig()

	if _, err := logger.Init(logger.DefaultConfig("planner-api")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("planner API starting up")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	traceCfg := tracing.DefaultConfig("planner-api")
	traceCfg.Enabled = cfg.TracingEnabled
	traceCfg.Endpoint = cfg.TracingEndpoint
	traceProvider, err := tracing.Init(ctx, traceCfg)
	if err != nil {
		logger.Warn("failed to initialize tracing", zap.Error(err))
	} else {
		defer traceProvider.Shutdown(context.Background())
	}

	connStr := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	store, err := postgres.NewPostgresStore(connStr)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()
	logger.Info("postgres connected")

	redisAddr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
	lock, err := redis.NewAcceptLock(redisAddr)
	if err != nil {
		logger.Fatal("failed to initialize accept lock", zap.Error(err))
	}
	defer lock.Close()
	logger.Info("redis connected")

	engine := planner.New(store, lock)

	var authCfg *middleware.AuthConfig
	if cfg.AuthEnabled {
		jwtConfig := auth.DefaultJWTConfig()
		jwtConfig.SecretKey = cfg.JWTSecret
		jwtConfig.Issuer = cfg.JWTIssuer
		jwtService, err := auth.NewJWTService(jwtConfig)
		if err != nil {
			logger.Fatal("failed to initialize JWT service", zap.Error(err))
		}
		keyClient := goredis.NewClient(&goredis.Options{Addr: redisAddr})
		authCfg = &middleware.AuthConfig{
			JWTService:  jwtService,
			APIKeyStore: auth.NewRedisAPIKeyStore(keyClient),
			SkipPaths:   []string{"/health", "/metrics"},
		}
	}

	var artifacts artifact.Store
	if cfg.ArtifactBackend == "s3" && cfg.S3Bucket != "" {
		artifacts, err = artifact.NewS3Store(artifact.S3StoreConfig{
			Bucket:          cfg.S3Bucket,
			Prefix:          "exports/scenarios/",
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	} else {
		artifacts, err = artifact.NewLocalStore(cfg.ArtifactDir)
	}
	if err != nil {
		logger.Warn("failed to initialize artifact store; exports disabled", zap.Error(err))
		artifacts = nil
	}

	server := api.NewServer(api.Config{
		Port:      cfg.APIPort,
		Engine:    engine,
		Repo:      store,
		Auth:      authCfg,
		Artifacts: artifacts,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("port", cfg.APIPort))

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	cancel()
	logger.Info("shutdown complete")
}
