package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"runtime"
	"strings"
	"syscall"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"library/internal/auth"
	"library/internal/logger"
	"library/internal/response"
	"library/internal/server"
	"library/internal/storage/authors"
	"library/internal/storage/books"
	"library/internal/storage/memory"
	"library/internal/storage/schema"
)

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

func getBoolEnv(key string) bool {
	if val := strings.ToLower(os.Getenv(key)); val == "yes" || val == "on" || val == "true" || val == "1" {
		return true
	}

	return false
}

var (
	logLevel  = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "debug"))
	logFormat = getEnvOrDefault("LOG_FORMAT", "text")
	dbConnStr = os.Getenv("DATABASE_URL")
	storage   = getEnvOrDefault("STORAGE", "postgres")
	migrate   = getBoolEnv("MIGRATE")
	bindAddr  = getEnvOrDefault("BIND_ADDR", ":8080")
	debugMode = getBoolEnv("DEBUG_MODE")
	jwtSecret = os.Getenv("JWT_SECRET")
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	lvl, lvlErr := logger.ParseLevel(logLevel)
	if lvlErr != nil {
		lvl = slog.LevelDebug
	}

	err := logger.SetupSLog(lvl, logFormat, path.Dir(path.Dir(path.Dir(thisFile))), middleware.RequestIDKey)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if lvlErr != nil {
		slog.Error("Invalid log level specified in LOG_LEVEL, one of debug, info, warn or error expected")
		os.Exit(1)
	}

	tokens, err := auth.NewTokens(jwtSecret)
	if err != nil {
		slog.Error("You need to specify JWT_SECRET env var")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ar authors.Repository
	var br books.Repository

	switch storage {
	case "memory":
		slog.Warn("Using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		ar, br = store.Authors(), store.Books()
	case "postgres":
		pg, err := connect(ctx)
		if err != nil {
			slog.Error(err.Error())
			os.Exit(1)
		}
		defer pg.Close()

		ar = authors.NewPGXRepository(pg, slog.Default())
		br = books.NewPGXRepository(pg, slog.Default())
	default:
		slog.Error("STORAGE must be postgres or memory")
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Mount("/", server.Handler(ar, br, tokens, &response.Responder{DebugMode: debugMode}, time.Now))

	srv := &http.Server{
		Addr:              bindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed: " + err.Error())
		}
	}()

	slog.Info("Listening on " + bindAddr)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("aborting: " + err.Error())
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbConnStr)
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	cfg.ConnConfig.Tracer = logger.NewPGXTracer()

	pg, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if migrate {
		if err := schema.Apply(ctx, pg); err != nil {
			pg.Close()
			return nil, err
		}
		slog.Info("Schema applied")
	}

	return pg, nil
}
