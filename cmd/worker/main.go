package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hostel/internal/config"
	"hostel/internal/history"
	"hostel/internal/queue"
	"hostel/internal/store"
)

// Worker drains complaint events from Redis into the Postgres history table.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis; with the memory queue the API records history itself")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable, will keep retrying", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	recorder := history.NewRecorder(q, history.NewRepository(db.Client))

	log.Printf("worker started, consuming %s", cfg.QueueKey)
	if err := recorder.Run(ctx); err != nil {
		log.Printf("recorder failed: %v", err)
	}
	log.Println("worker stopped")
}
