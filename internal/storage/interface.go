package storage

import (
	"context"
	"time"

	"github.com/mkarstad/repolens/internal/domain"
)

// SnapshotRepository records the result of every fresh upstream fetch so
// repository history can be queried later. The cache itself is never
// persisted.
type SnapshotRepository interface {
	StoreSnapshot(ctx context.Context, repo *domain.Repo, fetchedAt time.Time) error
	ListSnapshots(ctx context.Context, owner, name string, limit int) ([]Snapshot, error)
}

type Snapshot struct {
	ID        string
	Repo      *domain.Repo
	FetchedAt time.Time
}
