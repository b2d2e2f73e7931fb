package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mkarstad/repolens/internal/domain"
	"github.com/mkarstad/repolens/internal/processing"
	"github.com/mkarstad/repolens/internal/upstream"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: get-repo <owner>/<name>")
	}

	owner, name, ok := strings.Cut(os.Args[1], "/")
	if !ok || owner == "" || name == "" {
		log.Fatal("Usage: get-repo <owner>/<name>")
	}

	key := domain.RepoKey{Owner: owner, Name: name}
	url, ok := key.SourceURL()
	if !ok {
		log.Fatal("No retrieval target for repository")
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	gitHubAPI := upstream.NewGitHubAPI(httpClient, os.Getenv("GITHUB_API_TOKEN"))

	ctx := context.Background()
	data, statusCode, err := gitHubAPI.Fetch(ctx, url)
	if err != nil {
		log.Fatalf("Failed making request to GitHub API: %v", err)
	}

	if statusCode != 200 {
		log.Fatalf("GitHub API returned non-200 status code: %d - %s", statusCode, string(data))
	}

	repo, err := processing.ProcessRepoData(ctx, data)
	if err != nil {
		log.Fatalf("Failed processing repository data: %v", err)
	}

	output, err := json.MarshalIndent(repo, "", "  ")
	if err != nil {
		log.Fatalf("Failed marshalling repository: %v", err)
	}

	fmt.Println(string(output))
}
