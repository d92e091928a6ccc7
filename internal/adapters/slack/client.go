// Package slack posts tfci notifications to a Slack channel.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const slackAPIURL = "https://slack.com/api"

// Client is a Slack API client.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Slack client.
func NewClient(botToken string) *Client {
	return NewClientWithBaseURL(botToken, slackAPIURL)
}

// NewClientWithBaseURL creates a Slack client against a custom base URL
// (for tests).
func NewClientWithBaseURL(botToken, baseURL string) *Client {
	return &Client{
		botToken: botToken,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Message represents a Slack message.
type Message struct {
	Channel     string       `json:"channel"`
	Text        string       `json:"text,omitempty"`
	Blocks      []Block      `json:"blocks,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Block represents a Slack block.
type Block struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text,omitempty"`
}

// TextObject represents text in a block.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Attachment carries the colored sidebar on a message.
type Attachment struct {
	Color string `json:"color,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Attachment colors Slack renders as the message sidebar.
const (
	ColorGood   = "good"
	ColorDanger = "danger"
)

// NewBlockMessage wraps mrkdwn text in a single section block, keeping the
// plain text as the notification fallback.
func NewBlockMessage(text string) *Message {
	return &Message{
		Text: text,
		Blocks: []Block{{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: text},
		}},
	}
}

// NewAlertMessage renders body inside a colored attachment; fallback is what
// notification previews show.
func NewAlertMessage(fallback, body, color string) *Message {
	return &Message{
		Text:        fallback,
		Attachments: []Attachment{{Color: color, Text: body}},
	}
}

// PostMessageResponse is Slack's chat.postMessage response.
type PostMessageResponse struct {
	OK      bool   `json:"ok"`
	TS      string `json:"ts"`
	Channel string `json:"channel"`
	Error   string `json:"error,omitempty"`
}

// PostMessage posts a message to a channel.
func (c *Client) PostMessage(ctx context.Context, msg *Message) (*PostMessageResponse, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result PostMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("slack API error: %s", result.Error)
	}
	return &result, nil
}
