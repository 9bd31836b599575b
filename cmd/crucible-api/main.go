// Crucible API — HTTP-сервис конвейера generate→validate→repair.
//
// Запускает прогоны и стримит их прогресс (SSE, WebSocket), отдаёт
// историю запусков из Postgres и зеркалит события в RabbitMQ.
// База и брокер опциональны: без них сервис работает в усечённом
// режиме (без истории и без зеркала в очередь).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koshkarov/crucible/internal/api"
	"github.com/koshkarov/crucible/internal/generator"
	"github.com/koshkarov/crucible/internal/mq"
	"github.com/koshkarov/crucible/internal/repo"
	"github.com/koshkarov/crucible/internal/telemetry"
	"github.com/koshkarov/crucible/internal/validator"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crucible_api_http_requests_total",
		Help: "Total HTTP requests handled by crucible_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting crucible-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Генератор: OpenAI-совместимый chat-completions endpoint
	gen := generator.NewLLM(generator.Config{
		BaseURL: os.Getenv("LLM_BASE_URL"),
		APIKey:  os.Getenv("LLM_API_KEY"),
		Model:   os.Getenv("LLM_MODEL"),
		Logger:  logger,
	})

	// Валидатор: compile-сервис или локальный тулчейн
	val, err := buildValidator()
	if err != nil {
		logger.Error("failed to build validator", "error", err)
		os.Exit(1)
	}

	// Postgres опционален: без него история запусков отключена
	var runRepo *repo.RunRepo
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Warn("database not available, run history disabled", "error", err)
	} else {
		defer pool.Close()
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		runRepo = repo.NewRunRepo(pool)
		logger.Info("connected to database")
	}

	// RabbitMQ опционален: без него события не зеркалятся в очередь
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{URL: mqURL, Logger: logger})
	if err != nil {
		logger.Warn("RabbitMQ not available, queue progress mirror disabled", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
		logger.Info("RabbitMQ connected")
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Generator: gen,
		Validator: val,
		RunRepo:   runRepo,
		Publisher: publisher,
		MaxRounds: envInt("MAX_ROUNDS", 0),
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqTotal.Inc()
			mux.ServeHTTP(w, r)
		}),
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// buildValidator собирает валидатор из окружения: VALIDATOR_URL —
// compile-сервис, иначе VALIDATOR_CMD — локальный тулчейн.
func buildValidator() (validator.Validator, error) {
	if url := os.Getenv("VALIDATOR_URL"); url != "" {
		return validator.NewService(validator.ServiceConfig{
			URL:      url,
			Language: os.Getenv("VALIDATOR_LANGUAGE"),
		}), nil
	}
	if cmdline := os.Getenv("VALIDATOR_CMD"); cmdline != "" {
		fields := strings.Fields(cmdline)
		return validator.NewCommand(validator.CommandConfig{
			Name: fields[0],
			Args: fields[1:],
			Ext:  os.Getenv("VALIDATOR_EXT"),
		})
	}
	return nil, errors.New("set VALIDATOR_URL or VALIDATOR_CMD")
}

// envInt читает числовую переменную окружения с дефолтом.
func envInt(name string, defaultVal int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}
