// The worker drains the shared Redis persistence queue into sqlite and
// publishes durable-id echoes back to the broker over pub/sub. It runs
// independently of the server process and can fall arbitrarily behind
// without slowing broadcast.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Shubbu03/illustrations/queue"
	"github.com/Shubbu03/illustrations/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "canvas.sqlite3"
	}

	db, err := store.Open(dbPath)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rq := queue.NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
	worker := queue.NewWorker(db, rq)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting", "redis", addr, "database", dbPath)
	worker.RunRedis(ctx, rq)
	slog.Info("worker stopped")
}
