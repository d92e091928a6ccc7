package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tfci-io/tfci/internal/testutil"
)

// fakeCommentsAPI is an in-memory stand-in for the GitHub comments API.
type fakeCommentsAPI struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64]*Comment
	requests int
}

func newFakeCommentsAPI() *fakeCommentsAPI {
	return &fakeCommentsAPI{nextID: 1, comments: make(map[int64]*Comment)}
}

func (f *fakeCommentsAPI) add(body string, createdAt time.Time) *Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &Comment{ID: f.nextID, Body: body, CreatedAt: createdAt}
	f.comments[c.ID] = c
	f.nextID++
	return c
}

func (f *fakeCommentsAPI) list() []*Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Comment
	for _, c := range f.comments {
		out = append(out, c)
	}
	return out
}

func (f *fakeCommentsAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/comments"):
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			if page > 1 {
				_ = json.NewEncoder(w).Encode([]*Comment{})
				return
			}
			_ = json.NewEncoder(w).Encode(f.list())

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/comments"):
			var in struct {
				Body string `json:"body"`
			}
			_ = json.NewDecoder(r.Body).Decode(&in)
			c := f.add(in.Body, time.Now())
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(c)

		case r.Method == http.MethodPatch:
			id := commentIDFromPath(r.URL.Path)
			var in struct {
				Body string `json:"body"`
			}
			_ = json.NewDecoder(r.Body).Decode(&in)
			f.mu.Lock()
			if c, ok := f.comments[id]; ok {
				c.Body = in.Body
			}
			f.mu.Unlock()
			_, _ = fmt.Fprint(w, "{}")

		case r.Method == http.MethodDelete:
			id := commentIDFromPath(r.URL.Path)
			f.mu.Lock()
			delete(f.comments, id)
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func commentIDFromPath(path string) int64 {
	parts := strings.Split(path, "/")
	id, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	return id
}

func newTestManager(t *testing.T) (*Manager, *fakeCommentsAPI) {
	t.Helper()
	fake := newFakeCommentsAPI()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	client := NewClientWithBaseURL(testutil.FakeGitHubToken, server.URL)
	return NewManager(client, "acme", "infra", 7), fake
}

func TestPublishIdempotent(t *testing.T) {
	manager, fake := newTestManager(t)
	ctx := context.Background()
	id := Identity{Kind: KindPlan, Folder: "stacks/app"}

	action, err := manager.Publish(ctx, id, "plan body", Policy{})
	if err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	if action != Created {
		t.Errorf("first Publish() = %s, want %s", action, Created)
	}

	action, err = manager.Publish(ctx, id, "plan body", Policy{})
	if err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	if action != Updated {
		t.Errorf("second Publish() = %s, want %s", action, Updated)
	}

	if n := len(fake.list()); n != 1 {
		t.Errorf("live comments = %d, want exactly 1", n)
	}
}

func TestPublishEmbedsMarker(t *testing.T) {
	manager, fake := newTestManager(t)
	id := Identity{Kind: KindCost, Folder: "stacks/db"}

	if _, err := manager.Publish(context.Background(), id, "cost body", Policy{}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	comments := fake.list()
	if len(comments) != 1 {
		t.Fatalf("live comments = %d, want 1", len(comments))
	}
	if !strings.Contains(comments[0].Body, id.Marker()) {
		t.Errorf("comment body missing marker %q", id.Marker())
	}
}

func TestPublishDistinctIdentitiesCoexist(t *testing.T) {
	manager, fake := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.Publish(ctx, Identity{Kind: KindPlan, Folder: "a"}, "plan", Policy{}); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Publish(ctx, Identity{Kind: KindLint, Folder: "a"}, "lint", Policy{}); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Publish(ctx, Identity{Kind: KindPlan, Folder: "b"}, "plan", Policy{}); err != nil {
		t.Fatal(err)
	}

	if n := len(fake.list()); n != 3 {
		t.Errorf("live comments = %d, want 3", n)
	}
}

func TestPublishZeroDeltaDeletesExisting(t *testing.T) {
	manager, fake := newTestManager(t)
	id := Identity{Kind: KindCost, Folder: "stacks/app"}
	fake.add("old cost comment\n"+id.Marker(), time.Now())

	action, err := manager.Publish(context.Background(), id, "zero", Policy{
		SilentSkipOnZero: true,
		ZeroImpact:       true,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if action != Deleted {
		t.Errorf("Publish() = %s, want %s", action, Deleted)
	}
	if n := len(fake.list()); n != 0 {
		t.Errorf("live comments = %d, want 0", n)
	}
}

func TestPublishZeroDeltaNoExistingSkips(t *testing.T) {
	manager, fake := newTestManager(t)
	id := Identity{Kind: KindCost, Folder: "stacks/app"}

	action, err := manager.Publish(context.Background(), id, "zero", Policy{
		SilentSkipOnZero: true,
		ZeroImpact:       true,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if action != SkippedAction {
		t.Errorf("Publish() = %s, want %s", action, SkippedAction)
	}

	// Only the list lookup may hit the API; no create/update/delete call.
	if fake.requests != 1 {
		t.Errorf("API requests = %d, want 1 (list only)", fake.requests)
	}
}

func TestPublishRemovePolicy(t *testing.T) {
	manager, fake := newTestManager(t)
	id := Identity{Kind: KindLint, Folder: "stacks/app"}
	fake.add("lint findings\n"+id.Marker(), time.Now())

	action, err := manager.Publish(context.Background(), id, "", Policy{Remove: true})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if action != Deleted {
		t.Errorf("Publish() = %s, want %s", action, Deleted)
	}
	if n := len(fake.list()); n != 0 {
		t.Errorf("live comments = %d, want 0", n)
	}
}

func TestPublishCleansUpDuplicates(t *testing.T) {
	manager, fake := newTestManager(t)
	id := Identity{Kind: KindPlan, Folder: "stacks/app"}

	// Simulate the aftermath of two racing runs.
	fake.add("stale\n"+id.Marker(), time.Now().Add(-2*time.Hour))
	newest := fake.add("newest\n"+id.Marker(), time.Now().Add(-1*time.Minute))
	fake.add("stale too\n"+id.Marker(), time.Now().Add(-1*time.Hour))

	action, err := manager.Publish(context.Background(), id, "fresh body", Policy{})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if action != Updated {
		t.Errorf("Publish() = %s, want %s", action, Updated)
	}

	comments := fake.list()
	if len(comments) != 1 {
		t.Fatalf("live comments = %d, want exactly 1 after cleanup", len(comments))
	}
	if comments[0].ID != newest.ID {
		t.Errorf("surviving comment = %d, want the newest (%d)", comments[0].ID, newest.ID)
	}
	if !strings.Contains(comments[0].Body, "fresh body") {
		t.Errorf("surviving comment not updated: %q", comments[0].Body)
	}
}
