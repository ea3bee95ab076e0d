package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPBackend delegates trials to an external agent service. The service
// receives the run request as JSON and replies with the run output.
type HTTPBackend struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPBackend(endpoint string, timeout time.Duration) (*HTTPBackend, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("agent: http: endpoint is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPBackend{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (b *HTTPBackend) Name() string { return "http" }

func (b *HTTPBackend) Run(ctx context.Context, req *Request) (*RunOutput, error) {
	if req == nil {
		return nil, fmt.Errorf("agent: http: nil request")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("agent: http: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("agent: http: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent: http: task %s: %w", req.TaskID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("agent: http: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent: http: service returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out RunOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("agent: http: decode response: %w", err)
	}
	return &out, nil
}
