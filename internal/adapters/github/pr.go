package github

import (
	"context"
	"encoding/json"
	"os"
)

// eventPayload covers the places a PR number can live in a GitHub event.
type eventPayload struct {
	Number      int `json:"number"`
	PullRequest *struct {
		Number int `json:"number"`
	} `json:"pull_request"`
	Issue *struct {
		Number      int             `json:"number"`
		PullRequest json.RawMessage `json:"pull_request"`
	} `json:"issue"`
}

// ResolvePRNumber finds the pull request this run belongs to. The event
// payload is the primary source; the commit-association API is the
// fallback. Returns 0 when no PR can be resolved, which callers treat as
// "skip comment publication", not an error.
func ResolvePRNumber(ctx context.Context, client *Client, cfg *Config) (int, error) {
	if n := prNumberFromEvent(cfg.EventPath); n > 0 {
		return n, nil
	}

	if cfg.SHA == "" || client == nil {
		return 0, nil
	}
	pulls, err := client.ListPullsForCommit(ctx, cfg.Owner(), cfg.Repo(), cfg.SHA)
	if err != nil {
		return 0, err
	}
	if len(pulls) == 0 {
		return 0, nil
	}
	return pulls[0].Number, nil
}

func prNumberFromEvent(eventPath string) int {
	if eventPath == "" {
		return 0
	}
	data, err := os.ReadFile(eventPath)
	if err != nil {
		return 0
	}
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0
	}

	if payload.PullRequest != nil {
		if payload.Number > 0 {
			return payload.Number
		}
		return payload.PullRequest.Number
	}
	// issue_comment events nest the PR under issue.
	if payload.Issue != nil && payload.Issue.PullRequest != nil {
		return payload.Issue.Number
	}
	return 0
}
