// Package app wires the cache, upstream transport, processing and
// persistence into the operations the ports expose.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mkarstad/repolens/internal/cache"
	"github.com/mkarstad/repolens/internal/domain"
	e "github.com/mkarstad/repolens/internal/errors"
	"github.com/mkarstad/repolens/internal/logging"
	"github.com/mkarstad/repolens/internal/reporting"
	"github.com/mkarstad/repolens/internal/storage"
	"github.com/mkarstad/repolens/internal/strutils"
	"github.com/mkarstad/repolens/internal/telemetry"
)

type RepoCache = cache.Cache[domain.RepoKey, *domain.Repo]

type GetRepoWithCache func(ctx context.Context, owner, name string) (*domain.Repo, error)

// BuildGetRepoWithCache returns the main lookup operation: validate the
// requested repository, resolve it through the cache, persist a snapshot
// when the value was freshly fetched, and record the outcome. snapshots and
// metrics may be nil.
func BuildGetRepoWithCache(
	repoCache *RepoCache,
	snapshots storage.SnapshotRepository,
	metrics *telemetry.FetchMetrics,
	nowFunc func() time.Time,
) GetRepoWithCache {
	return func(ctx context.Context, owner, name string) (*domain.Repo, error) {
		logger := logging.FromContext(ctx)

		normalizedOwner, err := strutils.NormalizeRepoName(owner)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid owner: %w", e.APIClientError, err)
		}
		normalizedName, err := strutils.NormalizeRepoName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid repository name: %w", e.APIClientError, err)
		}

		key := domain.RepoKey{Owner: normalizedOwner, Name: normalizedName}

		repo, ok, outcome := repoCache.FetchSync(ctx, key)
		if metrics != nil {
			metrics.RecordOutcome(ctx, string(outcome))
		}

		if outcome == cache.OutcomeFetched && snapshots != nil {
			// Ignore cancellations from the request context and try to store
			// the snapshot anyway. Take at most 1 second to not block the
			// request for too long.
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 1*time.Second)
			defer cancel()
			if err := snapshots.StoreSnapshot(storeCtx, repo, nowFunc()); err != nil {
				// The snapshot is best-effort; the lookup still succeeded
				logger.ErrorContext(ctx, "failed to store snapshot", "error", err.Error())
			}
		}

		if !ok {
			switch outcome {
			case cache.OutcomeNoSource:
				err = fmt.Errorf("%w: repository has no retrieval target", e.APIClientError)
			case cache.OutcomeProcessingFailed:
				err = fmt.Errorf("%w: could not process upstream payload", e.UpstreamError)
				reporting.Report(ctx, err, map[string]string{
					"owner": normalizedOwner,
					"name":  normalizedName,
				})
			default:
				// OutcomeBadRequest, or a waiter whose fetch failed elsewhere
				err = fmt.Errorf("%w: upstream fetch failed", e.UpstreamError)
			}
			return nil, err
		}

		return repo, nil
	}
}

// BuildGetRepoHistory lists persisted snapshots for a repository, newest
// first.
type GetRepoHistory func(ctx context.Context, owner, name string, limit int) ([]storage.Snapshot, error)

func BuildGetRepoHistory(snapshots storage.SnapshotRepository) GetRepoHistory {
	return func(ctx context.Context, owner, name string, limit int) ([]storage.Snapshot, error) {
		normalizedOwner, err := strutils.NormalizeRepoName(owner)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid owner: %w", e.APIClientError, err)
		}
		normalizedName, err := strutils.NormalizeRepoName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid repository name: %w", e.APIClientError, err)
		}

		if limit < 1 || limit > 100 {
			limit = 100
		}

		history, err := snapshots.ListSnapshots(ctx, normalizedOwner, normalizedName, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list snapshots: %w", e.UpstreamError, err)
		}
		return history, nil
	}
}
