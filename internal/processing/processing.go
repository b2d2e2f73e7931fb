// Package processing turns raw upstream payloads into domain values.
package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mkarstad/repolens/internal/domain"
	"github.com/mkarstad/repolens/internal/logging"
)

// upstreamRepo mirrors the subset of the upstream response we keep.
type upstreamRepo struct {
	FullName        string     `json:"full_name"`
	Description     *string    `json:"description"`
	DefaultBranch   string     `json:"default_branch"`
	Language        *string    `json:"language"`
	StargazersCount *int       `json:"stargazers_count"`
	ForksCount      *int       `json:"forks_count"`
	OpenIssuesCount *int       `json:"open_issues_count"`
	Archived        bool       `json:"archived"`
	PushedAt        *time.Time `json:"pushed_at"`
}

// ProcessRepoData parses a raw upstream payload into a Repo, rejecting
// payloads that are not the expected JSON document.
func ProcessRepoData(ctx context.Context, payload []byte) (*domain.Repo, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	if payload[0] == '<' {
		// Upstream occasionally serves HTML error pages with a success status
		logging.FromContext(ctx).ErrorContext(ctx, "Payload is HTML, not JSON")
		return nil, fmt.Errorf("payload is HTML, not JSON")
	}

	var parsed upstreamRepo
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}

	owner, name, ok := strings.Cut(parsed.FullName, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("payload is missing a repository name: %q", parsed.FullName)
	}

	repo := &domain.Repo{
		Owner:         owner,
		Name:          name,
		DefaultBranch: parsed.DefaultBranch,
		Archived:      parsed.Archived,
	}
	if parsed.Description != nil {
		repo.Description = *parsed.Description
	}
	if parsed.Language != nil {
		repo.Language = *parsed.Language
	}
	if parsed.StargazersCount != nil {
		repo.Stars = *parsed.StargazersCount
	}
	if parsed.ForksCount != nil {
		repo.Forks = *parsed.ForksCount
	}
	if parsed.OpenIssuesCount != nil {
		repo.OpenIssues = *parsed.OpenIssuesCount
	}
	if parsed.PushedAt != nil {
		repo.PushedAt = *parsed.PushedAt
	}

	return repo, nil
}
