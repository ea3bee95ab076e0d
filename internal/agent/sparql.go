package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// QueryEngine executes a query against the task's knowledge source.
type QueryEngine interface {
	Execute(ctx context.Context, endpoint, query string) ([]map[string]any, error)
}

// SPARQLClient executes SPARQL queries over HTTP and returns flattened
// bindings.
type SPARQLClient struct {
	httpClient *http.Client
}

func NewSPARQLClient(timeout time.Duration) *SPARQLClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SPARQLClient{httpClient: &http.Client{Timeout: timeout}}
}

type sparqlResults struct {
	Boolean *bool `json:"boolean,omitempty"`
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Execute POSTs the query form-encoded and flattens each binding row to
// variable name -> value.
func (c *SPARQLClient) Execute(ctx context.Context, endpoint, query string) ([]map[string]any, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("agent: sparql: no endpoint configured")
	}

	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("agent: sparql: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: sparql: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("agent: sparql: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent: sparql: endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed sparqlResults
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("agent: sparql: decode results: %w", err)
	}

	if parsed.Boolean != nil {
		return []map[string]any{{"boolean": *parsed.Boolean}}, nil
	}

	rows := make([]map[string]any, 0, len(parsed.Results.Bindings))
	for _, b := range parsed.Results.Bindings {
		row := make(map[string]any, len(b))
		for name, cell := range b {
			row[name] = cell.Value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
