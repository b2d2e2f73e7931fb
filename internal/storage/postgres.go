package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mkarstad/repolens/internal/domain"
	"github.com/mkarstad/repolens/internal/logging"
	"github.com/mkarstad/repolens/internal/reporting"
)

const DB_NAME = "repolens"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=repolens sslmode=disable"

const MAIN_SCHEMA = "repolens"
const TESTING_SCHEMA = "repolens_test"

func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

func NewPostgresDatabase(connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	return db, nil
}

// ConnectionStringFor builds the connection string for the configured
// environment. An empty host falls back to the local development database.
func ConnectionStringFor(username, password, host string) string {
	if host == "" {
		return LOCAL_CONNECTION_STRING
	}
	return fmt.Sprintf("user=%s password=%s host=%s dbname=%s sslmode=require", username, password, host, DB_NAME)
}

type PostgresSnapshotRepository struct {
	db     *sqlx.DB
	schema string
}

func NewPostgresSnapshotRepository(db *sqlx.DB, schema string) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db, schema: schema}
}

type dbSnapshot struct {
	ID        string    `db:"id"`
	Owner     string    `db:"owner"`
	Name      string    `db:"name"`
	FetchedAt time.Time `db:"fetched_at"`
	RepoData  []byte    `db:"repo_data"`
}

func (r *PostgresSnapshotRepository) StoreSnapshot(ctx context.Context, repo *domain.Repo, fetchedAt time.Time) error {
	logger := logging.FromContext(ctx)

	repoData, err := json.Marshal(repo)
	if err != nil {
		err = fmt.Errorf("failed to marshal repo data: %w", err)
		reporting.Report(ctx, err)
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s.repo_snapshots (id, owner, name, fetched_at, repo_data) VALUES ($1, $2, $3, $4, $5)`,
		pq.QuoteIdentifier(r.schema),
	)
	_, err = r.db.ExecContext(ctx, query, uuid.New().String(), repo.Owner, repo.Name, fetchedAt, repoData)
	if err != nil {
		err = fmt.Errorf("failed to insert snapshot: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"owner": repo.Owner,
			"name":  repo.Name,
		})
		return err
	}

	logger.InfoContext(ctx, "Stored snapshot", "owner", repo.Owner, "repo", repo.Name)
	return nil
}

func (r *PostgresSnapshotRepository) ListSnapshots(ctx context.Context, owner, name string, limit int) ([]Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT id, owner, name, fetched_at, repo_data
		FROM %s.repo_snapshots
		WHERE owner = $1 AND name = $2
		ORDER BY fetched_at DESC
		LIMIT $3`,
		pq.QuoteIdentifier(r.schema),
	)

	var rows []dbSnapshot
	if err := r.db.SelectContext(ctx, &rows, query, owner, name, limit); err != nil {
		err = fmt.Errorf("failed to query snapshots: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		var repo domain.Repo
		if err := json.Unmarshal(row.RepoData, &repo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", row.ID, err)
		}
		snapshots = append(snapshots, Snapshot{
			ID:        row.ID,
			Repo:      &repo,
			FetchedAt: row.FetchedAt,
		})
	}

	return snapshots, nil
}
