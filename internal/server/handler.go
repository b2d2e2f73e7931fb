package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mkarstad/repolens/internal/app"
	"github.com/mkarstad/repolens/internal/logging"
	"github.com/mkarstad/repolens/internal/ratelimiting"
	"github.com/mkarstad/repolens/internal/reporting"
	"github.com/mkarstad/repolens/internal/storage"
)

// MakeGetRepoHandler serves GET /v1/repo/{owner}/{name}.
func MakeGetRepoHandler(
	getRepo app.GetRepoWithCache,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(120),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("repo"),
		NewRateLimitMiddleware(ipRateLimiter),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		repo, err := getRepo(ctx, r.PathValue("owner"), r.PathValue("name"))
		if err != nil {
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("Returning response", "statusCode", statusCode, "error", err.Error())
			return
		}

		responseBytes, err := json.Marshal(repo)
		if err != nil {
			reporting.Report(ctx, err)
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Error("Failed to marshal response", "statusCode", statusCode, "error", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(responseBytes)
		logger.Info("Returning response", "statusCode", http.StatusOK)
	}

	return middleware(handler)
}

type historyEntry struct {
	ID         string    `json:"id"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Stars      int       `json:"stars"`
	Forks      int       `json:"forks"`
	OpenIssues int       `json:"openIssues"`
}

// MakeGetRepoHistoryHandler serves GET /v1/repo/{owner}/{name}/history.
func MakeGetRepoHistoryHandler(
	getHistory app.GetRepoHistory,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(30),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("repo-history"),
		NewRateLimitMiddleware(ipRateLimiter),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		limit := 0
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, _ = strconv.Atoi(rawLimit)
		}

		history, err := getHistory(ctx, r.PathValue("owner"), r.PathValue("name"), limit)
		if err != nil {
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("Returning response", "statusCode", statusCode, "error", err.Error())
			return
		}

		entries := make([]historyEntry, 0, len(history))
		for _, snapshot := range history {
			entries = append(entries, snapshotToHistoryEntry(snapshot))
		}

		responseBytes, err := json.Marshal(entries)
		if err != nil {
			reporting.Report(ctx, err)
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Error("Failed to marshal response", "statusCode", statusCode, "error", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(responseBytes)
		logger.Info("Returning response", "statusCode", http.StatusOK, "entries", len(entries))
	}

	return middleware(handler)
}

func snapshotToHistoryEntry(snapshot storage.Snapshot) historyEntry {
	return historyEntry{
		ID:         snapshot.ID,
		FetchedAt:  snapshot.FetchedAt,
		Stars:      snapshot.Repo.Stars,
		Forks:      snapshot.Repo.Forks,
		OpenIssues: snapshot.Repo.OpenIssues,
	}
}
