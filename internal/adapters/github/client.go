// Package github talks to the GitHub REST API for PR status comments.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const githubAPIURL = "https://api.github.com"

// commentsPerPage is GitHub's maximum page size for issue comments.
const commentsPerPage = 100

// Config holds the GitHub surface of an invocation, populated from the
// GITHUB_* environment the CI system provides.
type Config struct {
	APIURL     string `yaml:"api_url"`
	ServerURL  string `yaml:"server_url"`
	Repository string `yaml:"repository"` // owner/name
	Token      string `yaml:"token"`
	EventName  string `yaml:"event_name"`
	EventPath  string `yaml:"event_path"`
	SHA        string `yaml:"sha"`
	RunID      string `yaml:"run_id"`
	Actor      string `yaml:"actor"`
	Workflow   string `yaml:"workflow"`
}

// DefaultConfig returns GitHub defaults; everything else comes from env.
func DefaultConfig() *Config {
	return &Config{
		APIURL:    githubAPIURL,
		ServerURL: "https://github.com",
	}
}

// Owner returns the repository owner part of owner/name.
func (c *Config) Owner() string {
	owner, _, _ := strings.Cut(c.Repository, "/")
	return owner
}

// Repo returns the repository name part of owner/name.
func (c *Config) Repo() string {
	_, repo, _ := strings.Cut(c.Repository, "/")
	return repo
}

// RunURL returns the link to the CI run's logs.
func (c *Config) RunURL() string {
	return fmt.Sprintf("%s/%s/actions/runs/%s", c.ServerURL, c.Repository, c.RunID)
}

// CommitURL returns the link to the commit under test.
func (c *Config) CommitURL() string {
	return fmt.Sprintf("%s/%s/commit/%s", c.ServerURL, c.Repository, c.SHA)
}

// IsPullRequestEvent reports whether the triggering event carries a PR.
func (c *Config) IsPullRequestEvent() bool {
	return c.EventName == "pull_request" || c.EventName == "pull_request_target"
}

// Client is a GitHub API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new GitHub client.
func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, githubAPIURL)
}

// NewClientWithBaseURL creates a GitHub client against a custom base URL
// (GitHub Enterprise, or httptest servers in tests).
func NewClientWithBaseURL(token, baseURL string) *Client {
	return &Client{
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Comment represents a GitHub issue comment.
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents a GitHub user.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// ListComments returns every comment on a PR, following pagination.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]*Comment, error) {
	var all []*Comment
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=%d&page=%d",
			owner, repo, number, commentsPerPage, page)
		var batch []*Comment
		if err := c.doRequest(ctx, http.MethodGet, path, nil, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < commentsPerPage {
			return all, nil
		}
	}
}

// CreateComment posts a new comment on a PR.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	return WithRetry(ctx, func() (*Comment, error) {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
		var comment Comment
		if err := c.doRequest(ctx, http.MethodPost, path, map[string]string{"body": body}, &comment); err != nil {
			return nil, err
		}
		return &comment, nil
	}, DefaultRetryOptions())
}

// UpdateComment overwrites an existing comment's body.
func (c *Client) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	return WithRetryVoid(ctx, func() error {
		path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", owner, repo, commentID)
		return c.doRequest(ctx, http.MethodPatch, path, map[string]string{"body": body}, nil)
	}, DefaultRetryOptions())
}

// DeleteComment removes a comment. A comment already gone (404) is success.
func (c *Client) DeleteComment(ctx context.Context, owner, repo string, commentID int64) error {
	return WithRetryVoid(ctx, func() error {
		path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", owner, repo, commentID)
		err := c.doRequest(ctx, http.MethodDelete, path, nil, nil)
		if isNotFoundError(err) {
			return nil
		}
		return err
	}, DefaultRetryOptions())
}

// ListPullsForCommit returns PRs associated with a commit SHA, used as a
// fallback when the event payload carries no PR number.
func (c *Client) ListPullsForCommit(ctx context.Context, owner, repo, sha string) ([]*PullRef, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits/%s/pulls", owner, repo, sha)
	var pulls []*PullRef
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &pulls); err != nil {
		return nil, err
	}
	return pulls, nil
}

// PullRef is the slice of a pull request this tool needs.
type PullRef struct {
	Number int    `json:"number"`
	State  string `json:"state"`
}

func isNotFoundError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "API error (status 404")
}
