package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Shubbu03/illustrations/auth"
	"github.com/Shubbu03/illustrations/domain"
	"github.com/Shubbu03/illustrations/hub"
	"github.com/Shubbu03/illustrations/protocol"
	"github.com/Shubbu03/illustrations/queue"
	"github.com/Shubbu03/illustrations/store"
	ws "github.com/Shubbu03/illustrations/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const memoryQueueCapacity = 4096

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	setupLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
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

	verifier := auth.NewVerifier(secret)
	broker := hub.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// With REDIS_ADDR set, jobs go to Redis and a separate worker
	// process drains them; committed-shape echoes come back over
	// pub/sub. Without it, an in-process worker serves a channel queue
	// and echoes straight into the hub.
	var jobQueue domain.Queue
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rq := queue.NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
		jobQueue = rq
		go func() {
			if err := rq.SubscribeEchoes(ctx, func(frame domain.Frame) {
				broadcastFrame(broker, frame)
			}); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("echo subscription ended", "error", err)
			}
		}()
		slog.Info("using redis persistence queue", "addr", addr)
	} else {
		mq := queue.NewMemory(memoryQueueCapacity)
		jobQueue = mq
		worker := queue.NewWorker(db, hubPublisher{broker: broker})
		go worker.Run(ctx, mq.Jobs())
		defer mq.Close()
		slog.Info("using in-process persistence queue")
	}

	handler := protocol.NewHandler(broker, jobQueue, db)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(ctx, verifier, broker, handler))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(broker))
	mux.HandleFunc("POST /rooms", createRoomHandler(db))
	mux.HandleFunc("GET /rooms/{id}/shapes", shapesHandler(db))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if os.Getenv("LOG_FORMAT") == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
}

// hubPublisher delivers worker echo frames straight into the local hub.
type hubPublisher struct {
	broker *hub.Hub
}

func (p hubPublisher) Publish(_ context.Context, frame domain.Frame) error {
	broadcastFrame(p.broker, frame)
	return nil
}

func broadcastFrame(broker *hub.Hub, frame domain.Frame) {
	roomID, err := strconv.ParseInt(frame.RoomID, 10, 64)
	if err != nil {
		slog.Warn("echo frame with bad room id", "roomID", frame.RoomID)
		return
	}
	data, err := frame.Encode()
	if err != nil {
		slog.Error("marshal echo frame", "error", err)
		return
	}
	broker.Broadcast(roomID, nil, data)
}

// wsHandler authenticates the upgrade. A missing or invalid token closes
// the connection before any frame is processed or any room state exists.
func wsHandler(ctx context.Context, verifier *auth.Verifier, broker *hub.Hub, handler *protocol.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := verifier.Verify(r.URL.Query().Get("token"))
		if err != nil {
			slog.Warn("rejected connection", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		wsConn := ws.NewConn(uuid.New().String(), userID, conn, broker, handler)
		wsConn.Start(ctx)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(broker *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, clients := broker.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"rooms": rooms, "clients": clients})
	}
}

func createRoomHandler(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Slug string `json:"slug"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Slug == "" {
			http.Error(w, "slug is required", http.StatusBadRequest)
			return
		}
		id, err := db.CreateRoom(r.Context(), body.Slug)
		if err != nil {
			slog.Error("create room", "slug", body.Slug, "error", err)
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"slug": body.Slug, "roomID": id})
	}
}

func shapesHandler(db *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		limit := queryInt(r, "limit", 500)
		offset := queryInt(r, "offset", 0)

		rows, err := db.ChatsByRoom(r.Context(), roomID, limit, offset)
		if err != nil {
			slog.Error("list shapes", "room", roomID, "error", err)
			http.Error(w, "failed to list shapes", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []store.ChatRow{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"shapes": rows})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
