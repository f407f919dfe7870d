// Package push sends mobile push notifications through the notification
// relay endpoint.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Message is the relay's request body.
type Message struct {
	Token   string `json:"expoPushToken"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Sender delivers one push message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client posts messages to the relay endpoint.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

func New(url string) *Client {
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.Token == "" {
		return fmt.Errorf("push: empty token")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("push: status=%d, body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// Discard drops every message. Used when no relay endpoint is configured.
type Discard struct{}

func (Discard) Send(context.Context, Message) error { return nil }
