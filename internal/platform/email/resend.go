// Package email implements the transactional email side channel: a Resend
// REST client, HTML templates for report delivery, and the serverless-style
// /api/send-email and /api/test-config endpoints.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// Provider is the transactional email provider name reported in
	// send responses.
	Provider = "Resend"

	defaultBaseURL = "https://api.resend.com"
)

// Message is a single outbound email.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Client talks to the Resend REST API.
type Client struct {
	apiKey   string
	from     string
	fromName string
	baseURL  string
	http     *http.Client
}

func NewClient(apiKey, from, fromName string) *Client {
	return &Client{
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the client at a different API host; used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// Configured reports whether provider credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send delivers the message and returns the provider message id. The
// boundary performs no deduplication; callers wanting at-most-once must
// ensure they call once.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("resend: missing API key")
	}

	from := c.from
	if c.fromName != "" {
		from = fmt.Sprintf("%s <%s>", c.fromName, c.from)
	}

	body, err := json.Marshal(sendRequest{From: from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
	if err != nil {
		return "", fmt.Errorf("resend: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend: send: %w", err)
	}
	defer resp.Body.Close()

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		parsed = sendResponse{}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if parsed.Message != "" {
			return "", fmt.Errorf("resend: provider error (%d): %s", resp.StatusCode, parsed.Message)
		}
		return "", fmt.Errorf("resend: provider error (%d)", resp.StatusCode)
	}

	return parsed.ID, nil
}
