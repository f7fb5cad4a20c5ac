package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// serviceClient speaks the reconciliation service protocol against a primary
// endpoint with an interchangeable fallback.
type serviceClient struct {
	primaryURL  string
	fallbackURL string
	httpClient  *http.Client
}

func newServiceClient(primaryURL, fallbackURL string) *serviceClient {
	return &serviceClient{
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// rawCandidate is one result as the service reports it. Score is a pointer:
// some services omit it, and absent is not the same as zero.
type rawCandidate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Score       *float64 `json:"score"`
	Types       []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"type"`
}

// query sends one reconciliation query, retrying identically against the
// fallback endpoint when the primary fails. When both fail it returns nil
// and no error: the engine degrades to "no automatic matches".
func (c *serviceClient) query(ctx context.Context, value, typeFilter string, contextProps []ContextProperty) []rawCandidate {
	results, err := c.queryEndpoint(ctx, c.primaryURL, value, typeFilter, contextProps)
	if err == nil {
		return results
	}
	slog.Warn("Primary reconciliation endpoint failed", "url", c.primaryURL, "err", err)

	if c.fallbackURL == "" {
		return nil
	}
	results, err = c.queryEndpoint(ctx, c.fallbackURL, value, typeFilter, contextProps)
	if err != nil {
		slog.Warn("Fallback reconciliation endpoint failed", "url", c.fallbackURL, "err", err)
		return nil
	}
	return results
}

func (c *serviceClient) queryEndpoint(ctx context.Context, endpoint, value, typeFilter string, contextProps []ContextProperty) ([]rawCandidate, error) {
	single := map[string]any{"query": value}
	if typeFilter != "" {
		single["type"] = typeFilter
	}
	if len(contextProps) > 0 {
		single["properties"] = contextProps
	}
	queries, err := json.Marshal(map[string]any{"q0": single})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	form := url.Values{}
	form.Set("queries", string(queries))

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Q0 struct {
			Result []rawCandidate `json:"result"`
		} `json:"q0"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		// malformed response counts as zero results, not an exception
		slog.Warn("Malformed reconciliation response treated as empty", "url", endpoint, "err", err)
		return []rawCandidate{}, nil
	}
	return payload.Q0.Result, nil
}
