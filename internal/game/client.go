// Package game talks to the external story-game service: it fetches story
// context for prompts and submits the merged action for a party.
package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/louisbranch/crowdplay/internal/platform/timeouts"
)

// Section is one block of story context as the game service reports it.
type Section struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Context is the story material the merge engine prompts with.
type Context struct {
	Sections         []Section `json:"sections"`
	MostRecentAction string    `json:"mostRecentAction"`
}

// Client is the narrow game-service surface the session core consumes.
type Client interface {
	FetchContext(ctx context.Context, party string) (Context, error)
	SubmitAction(ctx context.Context, party, text string) error
}

// HTTPConfig configures the game service HTTP client.
type HTTPConfig struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// HTTPClient implements Client against the game service's HTTP API.
type HTTPClient struct {
	cfg HTTPConfig
}

// NewHTTPClient builds a game service client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: timeouts.HTTPRequest}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &HTTPClient{cfg: cfg}
}

// FetchContext retrieves the current story sections and most recent action
// for a party, retrying transient failures with exponential backoff. Context
// refreshes are advisory, so a short retry window is enough.
func (c *HTTPClient) FetchContext(ctx context.Context, party string) (Context, error) {
	party = strings.TrimSpace(party)
	if party == "" {
		return Context{}, fmt.Errorf("party is required")
	}

	var result Context
	operation := func() error {
		fetched, err := c.fetchContextOnce(ctx, party)
		if err != nil {
			return err
		}
		result = fetched
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = timeouts.HTTPRequest
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return Context{}, fmt.Errorf("fetch context for %s: %w", party, err)
	}
	return result, nil
}

func (c *HTTPClient) fetchContextOnce(ctx context.Context, party string) (Context, error) {
	endpoint := fmt.Sprintf("%s/parties/%s/context", c.cfg.BaseURL, url.PathEscape(party))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Context{}, backoff.Permanent(fmt.Errorf("build context request: %w", err))
	}
	c.authorize(req)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return Context{}, fmt.Errorf("context request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		err := fmt.Errorf("context request status %d", res.StatusCode)
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			return Context{}, backoff.Permanent(err)
		}
		return Context{}, err
	}

	var payload Context
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Context{}, fmt.Errorf("decode context response: %w", err)
	}
	return payload, nil
}

// SubmitAction hands the merged action to the game service. Submission is
// best effort: a failure surfaces to the caller without retry so the cycle
// can be abandoned cleanly rather than double-submitted.
func (c *HTTPClient) SubmitAction(ctx context.Context, party, text string) error {
	party = strings.TrimSpace(party)
	text = strings.TrimSpace(text)
	if party == "" {
		return fmt.Errorf("party is required")
	}
	if text == "" {
		return fmt.Errorf("action text is required")
	}

	requestBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal action request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/parties/%s/actions", c.cfg.BaseURL, url.PathEscape(party))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("build action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("action request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(res.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("read action error body: %w", readErr)
		}
		return fmt.Errorf("action request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if token := strings.TrimSpace(c.cfg.AuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
