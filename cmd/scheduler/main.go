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
	"github.com/zainhoda/sij-manager-sub003/pkg/scheduler"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/postgres"

	"github.com/google/uuid"
)

func main() {
	cfg := config.LoadConfig()
	log.Println("[Scheduler] Starting up...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	connStr := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	store, err := postgres.NewPostgresStore(connStr)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Println("[Scheduler] Postgres connected & schema initialized.")

	etcdCoord, err := etcd.NewEtcdCoordinator(cfg.EtcdEndpoints, cfg.LeaderElectionTTL)
	if err != nil {
		log.Fatalf("Failed to connect to etcd: %v", err)
	}
	defer etcdCoord.Close()
	log.Println("[Scheduler] Connected to etcd.")

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "scheduler-" + uuid.New().String()
	}
	election := etcdCoord.NewElection("planner-scheduler-leader")

	log.Printf("[Scheduler] requesting leadership as %s...", hostname)
	if err := election.Campaign(ctx, hostname); err != nil {
		log.Fatalf("Election campaign failed: %v", err)
	}
	log.Println("[Scheduler] leadership acquired.")

	core := scheduler.NewCore(cfg, store)
	log.Println("[Scheduler] Starting capacity/proficiency/reconciliation sweep loop...")

	go func() {
		core.Run(ctx, election, hostname)
	}()

	sig := <-sigChan
	log.Printf("[Scheduler] Received signal %v, initiating graceful shutdown...", sig)

	cancel()

	if err := election.Resign(context.Background()); err != nil {
		log.Printf("[Scheduler] Warning: failed to resign leadership: %v", err)
	} else {
		log.Println("[Scheduler] Leadership resigned.")
	}

	log.Println("[Scheduler] Shutdown complete.")
}
