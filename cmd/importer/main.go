package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"runtime"
	"strings"
	"syscall"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"library/internal/importer"
	"library/internal/logger"
	"library/internal/storage/authors"
	"library/internal/storage/books"
	"library/internal/storage/schema"
)

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

var (
	feedUrl   = os.Getenv("FEED_URL")
	logLevel  = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "debug"))
	logFormat = getEnvOrDefault("LOG_FORMAT", "text")
	dbConnStr = os.Getenv("DATABASE_URL")
	migrate   = strings.ToLower(os.Getenv("MIGRATE")) == "true"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "only log the entries that would be imported")
	feedFlag := flag.String("feed", feedUrl, "OPDS acquisition feed to import (FEED_URL)")
	flag.Parse()

	_, thisFile, _, _ := runtime.Caller(0)

	lvl, lvlErr := logger.ParseLevel(logLevel)
	if lvlErr != nil {
		lvl = slog.LevelDebug
	}

	if err := logger.SetupSLog(lvl, logFormat, path.Dir(path.Dir(path.Dir(thisFile))), nil); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if lvlErr != nil {
		slog.Error("Invalid log level specified in LOG_LEVEL, one of debug, info, warn or error expected")
		os.Exit(1)
	}

	if *feedFlag == "" {
		slog.Error("You need to specify FEED_URL env var or -feed flag")
		os.Exit(1)
	}

	feed, err := url.Parse(*feedFlag)
	if err != nil {
		slog.Error("Invalid feed URL: " + err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	im := importer.Importer{
		Client: &http.Client{Timeout: time.Minute},
		Logger: slog.Default(),
	}

	if *dryRun {
		im.Consumer = &importer.LoggerConsumer{Logger: slog.Default()}
	} else {
		pg, err := connect(ctx)
		if err != nil {
			slog.Error(err.Error())
			os.Exit(1)
		}
		defer pg.Close()

		im.Consumer = &importer.StoringConsumer{
			Logger:  slog.Default(),
			Authors: authors.NewPGXRepository(pg, slog.Default()),
			Books:   books.NewPGXRepository(pg, slog.Default()),
			Now:     time.Now,
		}
	}

	stats, err := im.Import(ctx, feed)
	if err != nil {
		slog.Error("Import failed: " + err.Error())
		os.Exit(1)
	}

	slog.Info("Import finished",
		slog.Int("pages", stats.Pages),
		slog.Int("authors_created", stats.AuthorsCreated),
		slog.Int("books_created", stats.BooksCreated),
		slog.Int("skipped", stats.Skipped),
	)
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
	}

	return pg, nil
}
