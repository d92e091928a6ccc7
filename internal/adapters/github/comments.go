package github

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tfci-io/tfci/internal/logging"
)

// Kind names the comment surface a status comment belongs to.
type Kind string

const (
	KindPlan Kind = "plan"
	KindLint Kind = "lint"
	KindCost Kind = "cost"
)

// Identity is a logical comment identity. The invariant the Manager
// guarantees: at most one live comment per identity on a PR at any time.
type Identity struct {
	Kind   Kind
	Folder string
}

// Marker returns the stable HTML comment embedded invisibly in the body,
// used to relocate the comment on later runs against the same PR.
func (id Identity) Marker() string {
	return fmt.Sprintf("<!-- tfci:%s:%s -->", id.Kind, id.Folder)
}

// Action is the decision Publish applied.
type Action string

const (
	Created       Action = "created"
	Updated       Action = "updated"
	Deleted       Action = "deleted"
	SkippedAction Action = "skipped"
)

// Policy controls the create/update/delete decision.
type Policy struct {
	// SilentSkipOnZero suppresses (or removes) the comment when the body
	// represents a zero-impact result.
	SilentSkipOnZero bool
	// ZeroImpact marks the body as carrying no signal (cost delta 0).
	ZeroImpact bool
	// Remove deletes any existing comment for the identity regardless of
	// body, used when a check is disabled after previously commenting.
	Remove bool
}

// Manager applies comment-lifecycle decisions for one PR.
type Manager struct {
	client *Client
	owner  string
	repo   string
	number int
	log    *slog.Logger
}

// NewManager returns a Manager for the given PR.
func NewManager(client *Client, owner, repo string, number int) *Manager {
	return &Manager{
		client: client,
		owner:  owner,
		repo:   repo,
		number: number,
		log:    logging.WithComponent("comments"),
	}
}

// Publish upserts, deletes, or skips the status comment for an identity.
//
// Existing comments are located by marker. More than one match is a
// recovery scenario (a prior race or bug): the newest is kept and the rest
// deleted before the normal decision applies.
func (m *Manager) Publish(ctx context.Context, id Identity, body string, policy Policy) (Action, error) {
	if policy.Remove || (policy.SilentSkipOnZero && policy.ZeroImpact) {
		existing, err := m.findExisting(ctx, id)
		if err != nil {
			return SkippedAction, err
		}
		if existing == nil {
			// Nothing to remove and nothing to say: no write call at all.
			return SkippedAction, nil
		}
		if err := m.client.DeleteComment(ctx, m.owner, m.repo, existing.ID); err != nil {
			return SkippedAction, err
		}
		m.log.Info("deleted status comment", "kind", id.Kind, "folder", id.Folder, "comment_id", existing.ID)
		return Deleted, nil
	}

	marker := id.Marker()
	if !strings.Contains(body, marker) {
		body = body + "\n" + marker + "\n"
	}

	existing, err := m.findExisting(ctx, id)
	if err != nil {
		return SkippedAction, err
	}

	if existing != nil {
		if err := m.client.UpdateComment(ctx, m.owner, m.repo, existing.ID, body); err != nil {
			return SkippedAction, err
		}
		m.log.Info("updated status comment", "kind", id.Kind, "folder", id.Folder, "comment_id", existing.ID)
		return Updated, nil
	}

	comment, err := m.client.CreateComment(ctx, m.owner, m.repo, m.number, body)
	if err != nil {
		return SkippedAction, err
	}
	m.log.Info("created status comment", "kind", id.Kind, "folder", id.Folder, "comment_id", comment.ID)
	return Created, nil
}

// findExisting returns the single surviving comment for an identity,
// cleaning up duplicates by keeping the most recently created one.
func (m *Manager) findExisting(ctx context.Context, id Identity) (*Comment, error) {
	comments, err := m.client.ListComments(ctx, m.owner, m.repo, m.number)
	if err != nil {
		return nil, err
	}

	marker := id.Marker()
	var matches []*Comment
	for _, c := range comments {
		if strings.Contains(c.Body, marker) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	m.log.Warn("multiple comments for one identity, keeping newest",
		"kind", id.Kind, "folder", id.Folder, "count", len(matches))
	for _, stale := range matches[1:] {
		if err := m.client.DeleteComment(ctx, m.owner, m.repo, stale.ID); err != nil {
			return nil, fmt.Errorf("failed to remove duplicate comment %d: %w", stale.ID, err)
		}
	}
	return matches[0], nil
}
