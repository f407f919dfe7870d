// Package chatbot is a client for the assistant chatbot service.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultURL = "http://127.0.0.1:5052/process"

	// FallbackAnswer is shown when the service cannot be reached.
	FallbackAnswer = "Failed to get response from chatbot."
)

type request struct {
	Message string `json:"message"`
}

type response struct {
	Answer string `json:"answer"`
}

type Client struct {
	URL        string
	HTTPClient *http.Client
}

func New(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{URL: url, HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

// Ask sends one message and returns the service's answer.
func (c *Client) Ask(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(request{Message: message})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chatbot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chatbot: status=%d, body=%s", resp.StatusCode, string(b))
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chatbot: decode: %w", err)
	}
	return out.Answer, nil
}
