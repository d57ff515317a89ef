package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"chronicle-server/internal/ai"
	"chronicle-server/internal/config"
	"chronicle-server/internal/handler"
	"chronicle-server/internal/lock"
	"chronicle-server/internal/logger"
	"chronicle-server/internal/media"
	"chronicle-server/internal/repository"
	"chronicle-server/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// .env is optional in production.
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("applying database migrations")
	if err := repository.ApplyMigrations(cfg.GetDSN()); err != nil {
		log.Fatal("failed to apply migrations", zap.Error(err))
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		log.Fatal("invalid database configuration", zap.Error(err))
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("database ping failed", zap.Error(err))
	}
	log.Info("database connection established")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}
	log.Info("redis connection established")

	oracle, err := ai.New(ai.Config{
		APIKey:        cfg.OracleAPIKey,
		BaseURL:       cfg.OracleBaseURL,
		Model:         cfg.OracleModel,
		Timeout:       cfg.OracleTimeout,
		MaxRetries:    cfg.OracleMaxRetries,
		HistoryWindow: cfg.HistoryWindow,
		TokenBudget:   cfg.PromptTokenBudget,
	}, log)
	if err != nil {
		log.Fatal("failed to create oracle client", zap.Error(err))
	}

	speechClientCfg := openai.DefaultConfig(cfg.OracleAPIKey)
	if cfg.OracleBaseURL != "" {
		speechClientCfg.BaseURL = cfg.OracleBaseURL
	}
	speechClient := openai.NewClientWithConfig(speechClientCfg)

	speech := media.NewOpenAISpeech(speechClient, media.SpeechConfig{
		Voice:   cfg.SpeechVoice,
		Timeout: cfg.SpeechTimeout,
	}, cfg.SpeechEnabled, log)

	renderer := media.NewHTTPRenderer(media.RendererConfig{
		BaseURL: cfg.ImageRendererURL,
		Ratio:   cfg.ImageRatio,
		Timeout: cfg.ImageRendererTimeout,
	}, log)

	var synthesizer media.SpeechSynthesizer
	var transcriber media.Transcriber
	if speech != nil {
		synthesizer = speech
		transcriber = speech
	}
	pipeline := media.NewPipeline(oracle, renderer, synthesizer, log)

	store := repository.NewPgSceneRepository(pool, log)
	locker := lock.NewRedisLocker(redisClient, cfg.TurnLockTTL, log)
	assessor := service.NewCostAssessor(oracle, log)

	chronicles := service.NewChronicleService(
		oracle, assessor, pipeline, store, locker, transcriber,
		service.Config{
			ActionPointsPerTurn: cfg.ActionPointsPerTurn,
			MemoryLimit:         cfg.MemoryLimit,
		}, log)

	router := handler.NewRouter(handler.NewChronicleHandler(chronicles, log), log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("chronicle server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
