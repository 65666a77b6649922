// Package ai adapts the OpenAI responses endpoint to the merge engine's
// invoker interface.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/louisbranch/crowdplay/internal/merge"
	"github.com/louisbranch/crowdplay/internal/platform/timeouts"
)

// Config configures the OpenAI responses endpoint and HTTP behavior.
type Config struct {
	ResponsesURL string
	APIKey       string
	HTTPClient   *http.Client
}

// Client invokes the OpenAI responses API.
type Client struct {
	cfg Config
}

// NewClient builds an OpenAI invocation client with sensible defaults.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: timeouts.HTTPRequest}
	}
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		cfg.ResponsesURL = "https://api.openai.com/v1/responses"
	}
	return &Client{cfg: cfg}
}

// Invoke executes one responses-API call and extracts its output text.
func (c *Client) Invoke(ctx context.Context, input merge.InvokeInput) (merge.InvokeResult, error) {
	apiKey := strings.TrimSpace(c.cfg.APIKey)
	model := strings.TrimSpace(input.Model)
	prompt := strings.TrimSpace(input.Prompt)
	if apiKey == "" {
		return merge.InvokeResult{}, fmt.Errorf("api key is required")
	}
	if model == "" {
		return merge.InvokeResult{}, fmt.Errorf("model is required")
	}
	if prompt == "" {
		return merge.InvokeResult{}, fmt.Errorf("prompt is required")
	}

	body := map[string]any{
		"model": model,
		"input": prompt,
	}
	if system := strings.TrimSpace(input.System); system != "" {
		body["instructions"] = system
	}
	if input.MaxOutputTokens > 0 {
		body["max_output_tokens"] = input.MaxOutputTokens
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return merge.InvokeResult{}, fmt.Errorf("marshal invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return merge.InvokeResult{}, fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Credential material is sent only as an Authorization header and is never
	// echoed in errors or response payloads.
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return merge.InvokeResult{}, fmt.Errorf("invoke request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return merge.InvokeResult{}, fmt.Errorf("read invoke error body: %w", err)
		}
		return merge.InvokeResult{}, fmt.Errorf("invoke request status %d: %s", res.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return merge.InvokeResult{}, fmt.Errorf("decode invoke response: %w", err)
	}
	outputText := strings.TrimSpace(payload.OutputText)
	if outputText == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if strings.TrimSpace(content.Text) != "" {
					outputText = strings.TrimSpace(content.Text)
					break
				}
			}
			if outputText != "" {
				break
			}
		}
	}
	if outputText == "" {
		return merge.InvokeResult{}, fmt.Errorf("invoke response missing output text")
	}
	return merge.InvokeResult{OutputText: outputText}, nil
}
