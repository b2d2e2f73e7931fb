package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mkarstad/repolens/internal/app"
	"github.com/mkarstad/repolens/internal/cache"
	"github.com/mkarstad/repolens/internal/config"
	"github.com/mkarstad/repolens/internal/domain"
	"github.com/mkarstad/repolens/internal/processing"
	"github.com/mkarstad/repolens/internal/reporting"
	"github.com/mkarstad/repolens/internal/server"
	"github.com/mkarstad/repolens/internal/storage"
	"github.com/mkarstad/repolens/internal/telemetry"
	"github.com/mkarstad/repolens/internal/upstream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "repolens"

func main() {
	ctx := context.Background()

	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	if conf.OTLPEndpoint() != "" {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName)
		if err != nil {
			fail("Failed to initialize OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdownOTel(ctx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	gitHubAPI := upstream.NewGitHubAPI(httpClient, conf.GitHubToken())
	logger.Info("Initialized GitHub API client")

	repoCache := cache.New[domain.RepoKey](conf.CacheMaxSize(), gitHubAPI, processing.ProcessRepoData)

	fetchMetrics, err := telemetry.NewFetchMetrics(otel.Meter(serviceName), func() int64 {
		return int64(repoCache.Len())
	})
	if err != nil {
		fail("Failed to initialize metrics", "error", err.Error())
	}

	var snapshots storage.SnapshotRepository

	logger.Info("Initializing database connection")
	db, err := storage.NewPostgresDatabase(storage.ConnectionStringFor(conf.DBUsername(), conf.DBPassword(), conf.DBHost()))
	if err != nil {
		if !conf.IsDevelopment() {
			fail("Failed to initialize database connection", "error", err.Error())
		}
		// Snapshots are optional in development; serve without history
		logger.Warn("Running without snapshot persistence", "error", err.Error())
	} else {
		schemaName := storage.GetSchemaName(!conf.IsProduction())

		err = storage.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		snapshots = storage.NewPostgresSnapshotRepository(db, schemaName)
		logger.Info("Initialized SnapshotRepository")
	}

	getRepo := app.BuildGetRepoWithCache(repoCache, snapshots, fetchMetrics, time.Now)

	http.HandleFunc(
		"GET /v1/repo/{owner}/{name}",
		server.MakeGetRepoHandler(
			getRepo,
			logger.With("port", "repo"),
			sentryMiddleware,
		),
	)

	if snapshots != nil {
		getHistory := app.BuildGetRepoHistory(snapshots)
		http.HandleFunc(
			"GET /v1/repo/{owner}/{name}/history",
			server.MakeGetRepoHistoryHandler(
				getHistory,
				logger.With("port", "repo-history"),
				sentryMiddleware,
			),
		)
	}

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", conf.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
