package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tfci-io/tfci/internal/testutil"
)

func newTestNotifier(t *testing.T, cfg *Config) (*Notifier, *int32) {
	t.Helper()
	var posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		_ = json.NewEncoder(w).Encode(PostMessageResponse{OK: true, TS: "1.0", Channel: "C01"})
	}))
	t.Cleanup(server.Close)

	client := NewClientWithBaseURL(testutil.FakeSlackToken, server.URL)
	return NewNotifierWithClient(cfg, client), &posts
}

func TestNotifySuppression(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		trigger Trigger
		want    Status
	}{
		{
			name:    "disabled entirely",
			config:  Config{Enabled: false, NotifyOnError: true},
			trigger: TriggerMergeFailure,
			want:    Suppressed,
		},
		{
			name:    "merge failure enabled",
			config:  Config{Enabled: true, NotifyOnError: true},
			trigger: TriggerMergeFailure,
			want:    Sent,
		},
		{
			name:    "merge failure toggle off",
			config:  Config{Enabled: true, NotifyOnError: false},
			trigger: TriggerMergeFailure,
			want:    Suppressed,
		},
		{
			name:    "rollup success enabled",
			config:  Config{Enabled: true, NotifyOnRollup: true},
			trigger: TriggerRollupSuccess,
			want:    Sent,
		},
		{
			name:    "rollup success toggle off",
			config:  Config{Enabled: true, NotifyOnRollup: false},
			trigger: TriggerRollupSuccess,
			want:    Suppressed,
		},
		{
			name:    "unknown trigger",
			config:  Config{Enabled: true, NotifyOnError: true, NotifyOnRollup: true},
			trigger: Trigger("mystery"),
			want:    Suppressed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.Channel = "#infra"
			notifier, posts := newTestNotifier(t, &cfg)

			status, err := notifier.Notify(context.Background(), &Message{Text: "hi"}, tt.trigger)
			if err != nil {
				t.Fatalf("Notify() error = %v", err)
			}
			if status != tt.want {
				t.Errorf("Notify() = %s, want %s", status, tt.want)
			}

			wantPosts := int32(0)
			if tt.want == Sent {
				wantPosts = 1
			}
			if *posts != wantPosts {
				t.Errorf("API posts = %d, want %d", *posts, wantPosts)
			}
		})
	}
}

func TestNotifyUsesConfiguredChannel(t *testing.T) {
	var gotChannel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		gotChannel = msg.Channel
		_ = json.NewEncoder(w).Encode(PostMessageResponse{OK: true})
	}))
	defer server.Close()

	cfg := &Config{Enabled: true, NotifyOnError: true, Channel: "#terraform-ci"}
	notifier := NewNotifierWithClient(cfg, NewClientWithBaseURL(testutil.FakeSlackToken, server.URL))

	if _, err := notifier.Notify(context.Background(), &Message{Text: "boom"}, TriggerMergeFailure); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotChannel != "#terraform-ci" {
		t.Errorf("channel = %q, want #terraform-ci", gotChannel)
	}
}

func TestNotifyAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PostMessageResponse{OK: false, Error: "channel_not_found"})
	}))
	defer server.Close()

	cfg := &Config{Enabled: true, NotifyOnError: true, Channel: "#gone"}
	notifier := NewNotifierWithClient(cfg, NewClientWithBaseURL(testutil.FakeSlackToken, server.URL))

	status, err := notifier.Notify(context.Background(), &Message{Text: "boom"}, TriggerMergeFailure)
	if err == nil {
		t.Fatal("Notify() error = nil, want slack API error")
	}
	if status == Sent {
		t.Error("Notify() = Sent despite API error")
	}
}

func TestNewBlockMessage(t *testing.T) {
	msg := NewBlockMessage("*2 folders* changed")

	if msg.Text != "*2 folders* changed" {
		t.Errorf("fallback text = %q", msg.Text)
	}
	if len(msg.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(msg.Blocks))
	}
	block := msg.Blocks[0]
	if block.Type != "section" || block.Text == nil || block.Text.Type != "mrkdwn" {
		t.Errorf("unexpected block shape: %+v", block)
	}
	if block.Text.Text != msg.Text {
		t.Errorf("block text = %q, want the fallback text", block.Text.Text)
	}
}

func TestNewAlertMessage(t *testing.T) {
	msg := NewAlertMessage("apply failed", "*stage*: apply\n*cause*: exit code 1", ColorDanger)

	if msg.Text != "apply failed" {
		t.Errorf("fallback text = %q", msg.Text)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(msg.Attachments))
	}
	if msg.Attachments[0].Color != ColorDanger {
		t.Errorf("color = %q, want %q", msg.Attachments[0].Color, ColorDanger)
	}
	if !strings.Contains(msg.Attachments[0].Text, "exit code 1") {
		t.Errorf("attachment body = %q", msg.Attachments[0].Text)
	}
}
