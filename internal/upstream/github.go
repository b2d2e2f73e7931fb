// Package upstream implements the transport used to retrieve raw repository
// metadata from the GitHub REST API.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mkarstad/repolens/internal/cache"
	e "github.com/mkarstad/repolens/internal/errors"
	"github.com/mkarstad/repolens/internal/logging"
)

const userAgent = "repolens (+https://github.com/mkarstad/repolens)"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type gitHubAPI struct {
	httpClient HttpClient
	token      string
}

// Fetch performs a GET against the given API url and returns the raw body
// and status code. Errors are transport-level only; non-success statuses are
// returned to the caller to classify.
func (api gitHubAPI) Fetch(ctx context.Context, url string) ([]byte, int, error) {
	logger := logging.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create request", "error", err)
		return []byte{}, -1, fmt.Errorf("%w: %w", e.UpstreamError, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if api.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", api.token))
	}

	resp, err := api.httpClient.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to send request", "error", err)
		return []byte{}, -1, fmt.Errorf("%w: %w", e.UpstreamError, err)
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read response body", "error", err)
		return []byte{}, -1, fmt.Errorf("%w: %w", e.UpstreamError, err)
	}

	return data, resp.StatusCode, nil
}

// NewGitHubAPI returns a Fetcher for the GitHub REST API. The token is
// optional; unauthenticated requests get a much lower upstream quota.
func NewGitHubAPI(httpClient HttpClient, token string) cache.Fetcher {
	return gitHubAPI{
		httpClient: httpClient,
		token:      token,
	}
}
