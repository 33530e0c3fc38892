package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/zainhoda/sij-manager-sub003/configs"
	"github.com/zainhoda/sij-manager-sub003/pkg/coordination/etcd"
	"github.com/zainhoda/sij-manager-sub003/pkg/reporter"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/postgres"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/redis"
)

func main() {
	cfg := config.LoadConfig()
	log.Println("[Reporter] Starting up...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	connStr := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
	repo, err := postgres.NewPostgresStore(connStr)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer repo.Close()

	etcdCoord, err := etcd.NewEtcdCoordinator(cfg.EtcdEndpoints, cfg.LeaderElectionTTL)
	if err != nil {
		log.Fatalf("Failed to connect to etcd: %v", err)
	}
	defer etcdCoord.Close()

	redisAddr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
	events, err := redis.NewEventStream(redisAddr)
	if err != nil {
		log.Fatalf("Failed to initialize event stream: %v", err)
	}
	defer events.Close()

	r := reporter.New(cfg, etcdCoord, events, repo)

	go func() {
		r.Start(ctx)
	}()

	sig := <-sigChan
	log.Printf("[Reporter] Received signal %v, initiating graceful shutdown...", sig)

	cancel()

	log.Println("[Reporter] Shutdown complete.")
}
