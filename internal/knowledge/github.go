package knowledge

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHubClient wraps the GitHub API client with rate limiting. If
// GITHUB_TOKEN is set the client is authenticated for higher limits.
type GitHubClient struct {
	*github.Client
}

func NewGitHubClient() (*GitHubClient, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	client := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHubClient{Client: client}, nil
}

// GitHubSource pulls a documentation folder of a repository into the
// knowledge base. Markdown files are flattened with their header context,
// plain text files are taken verbatim.
type GitHubSource struct {
	client   *GitHubClient
	owner    string
	repo     string
	basePath string
	markdown *MarkdownReader
	logger   *slog.Logger
}

func NewGitHubSource(client *GitHubClient, owner, repo, basePath string, logger *slog.Logger) *GitHubSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubSource{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		markdown: NewMarkdownReader(),
		logger:   logger,
	}
}

// Documents lists and fetches every markdown and text file under the
// configured repository path.
func (s *GitHubSource) Documents(ctx context.Context) ([]Document, error) {
	paths, err := s.list(ctx, s.basePath, "")
	if err != nil {
		return nil, err
	}
	s.logger.Info("Listed remote knowledge files", "repo", s.owner+"/"+s.repo, "count", len(paths))

	fetchedAt := time.Now()
	docs := make([]Document, 0, len(paths))
	for _, rel := range paths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		text, err := s.fetch(ctx, rel)
		if err != nil {
			s.logger.Warn("Failed to fetch remote file", "path", rel, "error", err)
			continue
		}
		sourcePath := fmt.Sprintf("github.com/%s/%s/%s", s.owner, s.repo, path.Join(s.basePath, rel))
		docs = append(docs, NewDocument(sourcePath, text, fetchedAt))
	}
	return docs, nil
}

func (s *GitHubSource) list(ctx context.Context, fullPath, relPath string) ([]string, error) {
	_, entries, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", fullPath, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type == nil || entry.Name == nil {
			continue
		}
		entryRel := path.Join(relPath, *entry.Name)
		switch *entry.Type {
		case "file":
			if strings.HasSuffix(*entry.Name, ".md") || strings.HasSuffix(*entry.Name, ".txt") {
				paths = append(paths, entryRel)
			}
		case "dir":
			sub, err := s.list(ctx, path.Join(fullPath, *entry.Name), entryRel)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

func (s *GitHubSource) fetch(ctx context.Context, relPath string) (string, error) {
	fullPath := path.Join(s.basePath, relPath)

	content, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fullPath, nil)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", fullPath, err)
	}
	if content == nil || content.Content == nil {
		return "", fmt.Errorf("no content returned for %s", fullPath)
	}

	raw, err := base64.StdEncoding.DecodeString(*content.Content)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", fullPath, err)
	}

	if strings.HasSuffix(relPath, ".md") {
		return s.markdown.Flatten(raw)
	}
	return string(raw), nil
}
