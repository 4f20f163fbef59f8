package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default GitHub adapter configuration constants.
const (
	defaultGitHubAPI     = "https://api.github.com"
	defaultGitHubTimeout = 15 * time.Second
	maxErrorBody         = 4 << 10
)

// GitHubStore keeps objects as files in a GitHub repository through the
// contents API. The object identifier is the file path inside the repository
// and the version is the blob sha.
type GitHubStore struct {
	apiURL  string
	owner   string
	repo    string
	branch  string
	token   string
	message string
	client  *http.Client
}

// GitHubOption applies a configuration option to the GitHubStore.
type GitHubOption func(*GitHubStore)

// WithAPIURL points the adapter at a different API root (GitHub Enterprise, tests).
func WithAPIURL(u string) GitHubOption {
	return func(g *GitHubStore) {
		if u != "" {
			g.apiURL = strings.TrimRight(u, "/")
		}
	}
}

// WithBranch selects the branch to read and commit to.
func WithBranch(branch string) GitHubOption {
	return func(g *GitHubStore) {
		g.branch = branch
	}
}

// WithToken sets the bearer token.
func WithToken(token string) GitHubOption {
	return func(g *GitHubStore) {
		g.token = token
	}
}

// WithCommitMessage sets the commit message used for writes.
func WithCommitMessage(msg string) GitHubOption {
	return func(g *GitHubStore) {
		if msg != "" {
			g.message = msg
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubStore) {
		if c != nil {
			g.client = c
		}
	}
}

// NewGitHubStore returns an adapter for owner/repo.
func NewGitHubStore(owner, repo string, opts ...GitHubOption) *GitHubStore {
	g := &GitHubStore{
		apiURL:  defaultGitHubAPI,
		owner:   owner,
		repo:    repo,
		message: "Update expert scores",
		client:  &http.Client{Timeout: defaultGitHubTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type contentResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content contentResponse `json:"content"`
}

// Fetch implements Store.
func (g *GitHubStore) Fetch(ctx context.Context, id string) (Object, error) {
	u := g.contentsURL(id)
	if g.branch != "" {
		u += "?ref=" + url.QueryEscape(g.branch)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Object{}, fmt.Errorf("build github request: %w", err)
	}
	var body contentResponse
	if err := g.do(req, &body); err != nil {
		return Object{}, err
	}
	if body.Encoding != "" && body.Encoding != "base64" {
		return Object{}, fmt.Errorf("%w: unsupported content encoding %q", ErrUnavailable, body.Encoding)
	}
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body.Content, "\n", ""))
	if err != nil {
		return Object{}, fmt.Errorf("decode github content: %w", err)
	}
	return Object{Content: content, Version: body.SHA}, nil
}

// Create implements Store.
func (g *GitHubStore) Create(ctx context.Context, id string, content []byte) (string, error) {
	return g.put(ctx, id, content, "")
}

// Update implements Store.
func (g *GitHubStore) Update(ctx context.Context, id string, content []byte, expectedVersion string) (string, error) {
	if expectedVersion == "" {
		return "", fmt.Errorf("%w: update without version", ErrVersionConflict)
	}
	return g.put(ctx, id, content, expectedVersion)
}

func (g *GitHubStore) put(ctx context.Context, id string, content []byte, sha string) (string, error) {
	payload, err := json.Marshal(putRequest{
		Message: g.message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
		Branch:  g.branch,
	})
	if err != nil {
		return "", fmt.Errorf("encode github request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.contentsURL(id), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	var body putResponse
	if err := g.do(req, &body); err != nil {
		return "", err
	}
	return body.Content.SHA, nil
}

func (g *GitHubStore) contentsURL(id string) string {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.apiURL, url.PathEscape(g.owner), url.PathEscape(g.repo), strings.Join(parts, "/"))
}

func (g *GitHubStore) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrVersionConflict, readMessage(resp.Body))
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, readMessage(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, readMessage(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

func readMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}
