package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wbfreight/dispatch/internal/bot"
	"github.com/wbfreight/dispatch/internal/messaging"
	"github.com/wbfreight/dispatch/internal/telegram"
	"github.com/wbfreight/dispatch/internal/telemetry"
)

const sessionTTL = 24 * time.Hour

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "notifier", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		logger.Error("BOT_TOKEN environment variable is required")
		os.Exit(1)
	}

	adminChatID, err := strconv.ParseInt(os.Getenv("ADMIN_CHAT_ID"), 10, 64)
	if err != nil {
		logger.Error("ADMIN_CHAT_ID environment variable is required and must be an integer", "error", err)
		os.Exit(1)
	}

	coreAPIURL := os.Getenv("CORE_API_URL")
	if coreAPIURL == "" {
		logger.Error("CORE_API_URL environment variable is required")
		os.Exit(1)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// The Bot API holds getUpdates open for up to 30s, so the client
	// timeout has to sit above that.
	tgClient := telegram.NewClient(
		telegram.Config{Token: botToken, AdminChatID: adminChatID},
		&http.Client{Timeout: 40 * time.Second},
	)

	apiClient := bot.NewAPIClient(coreAPIURL, &http.Client{Timeout: 10 * time.Second})
	sessions := bot.NewRedisStore(redisClient, sessionTTL)

	dispatchBot := bot.New(tgClient, apiClient, sessions, adminChatID, logger)

	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		consumer := messaging.NewConsumer(brokers, messaging.OrderEventsTopic, "notifier")
		defer func() { _ = consumer.Close() }()

		go func() {
			logger.Info("starting event consumer", "brokers", brokers)
			if err := consumer.Consume(ctx, dispatchBot.HandleMessage); err != nil && ctx.Err() == nil {
				logger.Error("consumer error", "error", err)
				cancel()
			}
		}()
	}

	poller := bot.NewPoller(tgClient, dispatchBot, logger)
	go func() {
		logger.Info("starting update poller")
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("poller error", "error", err)
			cancel()
		}
	}()

	handler := bot.NewHandler(dispatchBot, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify", telemetry.WithHTTPRoute(handler.HandleNotify))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting notifier service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
