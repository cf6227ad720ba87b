package memorystore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
)

const (
	maxContentChars     = 60000
	maxDescriptionChars = 500
	addMaxAttempts      = 3
)

// Client talks to the managed vector-memory document store. One instance is
// shared process-wide; per-user isolation happens through filter predicates,
// never through separate clients.
type Client struct {
	BaseURL string
	apiKey  string
	http    *http.Client
	log     logger.ILogger
}

func NewClient(baseURL, apiKey string, log logger.ILogger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// AddDocument writes one document. Rate limits are retried with exponential
// backoff up to 3 attempts; 400/401 responses are logged and swallowed (nil
// ack, nil error) so ingestion never aborts a batch on a single bad document.
func (c *Client) AddDocument(ctx context.Context, content string, metadata map[string]interface{}, title, description string) (*AddAck, error) {
	if c.apiKey == "" {
		c.log.Warn("memorystore", "no api key configured, skipping add_document", nil)
		return nil, nil
	}

	if len(content) > maxContentChars {
		content = content[:maxContentChars] + "\n[TRUNCATED]"
	}

	cleanMeta := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		cleanMeta[k] = v
	}
	// Every stored document carries a type tag so partition filters can see it.
	if _, ok := cleanMeta["type"]; !ok {
		cleanMeta["type"] = "document"
	}

	payload := map[string]interface{}{
		"content":  content,
		"metadata": cleanMeta,
	}
	if title != "" {
		payload["title"] = title
	}
	if description != "" {
		if len(description) > maxDescriptionChars {
			description = description[:maxDescriptionChars]
		}
		payload["description"] = description
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal document payload: %w", err)
	}

	for attempt := 0; attempt < addMaxAttempts; attempt++ {
		resp, err := c.post(ctx, "/v3/documents", body)
		if err != nil {
			return nil, fmt.Errorf("add_document request: %w", err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := time.Duration(float64(int(1)<<attempt)+rand.Float64()) * time.Second
			c.log.Warn("memorystore", "rate limited, backing off", map[string]interface{}{
				"attempt": attempt + 1,
				"wait":    wait.String(),
			})
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue

		case resp.StatusCode == http.StatusBadRequest:
			c.log.Warn("memorystore", "document rejected with 400", map[string]interface{}{
				"body": truncate(string(respBody), 200),
			})
			return nil, nil

		case resp.StatusCode == http.StatusUnauthorized:
			c.log.Error("memorystore", "unauthorized, check memory store api key", nil)
			return nil, nil

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			c.log.Error("memorystore", "add_document failed", map[string]interface{}{
				"status": resp.StatusCode,
				"body":   truncate(string(respBody), 200),
			})
			return nil, nil
		}

		if readErr != nil {
			return nil, fmt.Errorf("read add_document response: %w", readErr)
		}
		var ack AddAck
		if err := json.Unmarshal(respBody, &ack); err != nil {
			return nil, fmt.Errorf("unmarshal add_document response: %w", err)
		}
		return &ack, nil
	}

	c.log.Error("memorystore", "add_document gave up after rate-limit retries", map[string]interface{}{
		"attempts": addMaxAttempts,
	})
	return nil, nil
}

// Search runs one filtered query. Non-200 responses degrade to an empty
// result set without retrying, so read paths stay latency-bounded.
func (c *Client) Search(ctx context.Context, query string, filters *Filter, limit int) (*SearchResponse, error) {
	empty := &SearchResponse{Results: []SearchResult{}}
	if c.apiKey == "" {
		return empty, nil
	}

	finalQuery := strings.TrimSpace(query)
	if finalQuery == "" {
		finalQuery = "*"
	}

	payload := map[string]interface{}{
		"q":     finalQuery,
		"limit": limit,
	}
	if filters != nil && !filters.IsZero() {
		payload["filters"] = filters
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	resp, err := c.post(ctx, "/v3/search", body)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Error("memorystore", "unauthorized on search, check memory store api key", nil)
		return empty, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("memorystore", "search degraded to empty results", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   truncate(string(respBody), 200),
		})
		return empty, nil
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}
	return &result, nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/v3/documents/"+documentID, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete_document request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete_document %s: status %d", documentID, resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return c.http.Do(req)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fiwb-mvp/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
