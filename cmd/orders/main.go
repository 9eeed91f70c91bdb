package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wbfreight/dispatch/internal/catalog"
	"github.com/wbfreight/dispatch/internal/fleet"
	"github.com/wbfreight/dispatch/internal/messaging"
	"github.com/wbfreight/dispatch/internal/notify"
	"github.com/wbfreight/dispatch/internal/orders"
	"github.com/wbfreight/dispatch/internal/pricing"
	"github.com/wbfreight/dispatch/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var notifier orders.Notifier
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer := messaging.NewProducer(brokers, messaging.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		notifier = notify.NewEventPublisher(producer)
	} else if notifierURL := os.Getenv("NOTIFIER_URL"); notifierURL != "" {
		httpClient := &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		notifier = notify.NewGateway(notifierURL, httpClient)
	} else {
		logger.Warn("no notifier configured, order events will be dropped")
	}

	orderRepo := orders.NewOrderRepository(db)
	catalogRepo := catalog.NewRepository(db)
	fleetRepo := fleet.NewRepository(db)
	priceRepo := pricing.NewCatalogRepository(db)

	calculator := pricing.NewCalculator(priceRepo, logger)

	orderHandler := orders.NewHandler(orderRepo, catalogRepo, fleetRepo, priceRepo, calculator, notifier, logger)
	pricingHandler := pricing.NewHandler(calculator, logger)
	catalogHandler := catalog.NewHandler(catalogRepo, logger)
	fleetHandler := fleet.NewHandler(fleetRepo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("POST /orders/{id}/assign", telemetry.WithHTTPRoute(orderHandler.HandleAssign))
	mux.HandleFunc("POST /orders/{id}/reject", telemetry.WithHTTPRoute(orderHandler.HandleReject))
	mux.HandleFunc("POST /pricing/preview", telemetry.WithHTTPRoute(pricingHandler.HandlePreview))
	mux.HandleFunc("GET /warehouses", telemetry.WithHTTPRoute(catalogHandler.HandleListWarehouses))
	mux.HandleFunc("GET /services", telemetry.WithHTTPRoute(catalogHandler.HandleListServices))
	mux.HandleFunc("GET /drivers", telemetry.WithHTTPRoute(fleetHandler.HandleListDrivers))
	mux.HandleFunc("GET /trucks", telemetry.WithHTTPRoute(fleetHandler.HandleListTrucks))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "orders",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
