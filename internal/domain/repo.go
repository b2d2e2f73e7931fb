package domain

import (
	"fmt"
	"time"
)

// RepoKey identifies a repository on the upstream host. The zero value has
// no retrieval target.
type RepoKey struct {
	Owner string
	Name  string
}

// SourceURL returns the upstream API endpoint for the repository, or
// ok=false when either component is missing.
func (k RepoKey) SourceURL() (string, bool) {
	if k.Owner == "" || k.Name == "" {
		return "", false
	}
	return fmt.Sprintf("https://api.github.com/repos/%s/%s", k.Owner, k.Name), true
}

// Repo is the processed repository metadata served to clients. It is a
// trimmed view of the upstream response.
type Repo struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DefaultBranch string    `json:"defaultBranch"`
	Language      string    `json:"language,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"openIssues"`
	Archived      bool      `json:"archived"`
	PushedAt      time.Time `json:"pushedAt,omitzero"`
}
