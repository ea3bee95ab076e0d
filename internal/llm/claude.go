package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/stellarlinkco/agent-eval/internal/claude"
)

// ClaudeProvider adapts the claude client to the Provider interface.
type ClaudeProvider struct {
	client *claude.Client
}

// NewClaudeProvider builds a Claude provider.
func NewClaudeProvider(apiKey string, baseURL string, model string) *ClaudeProvider {
	opts := make([]claude.Option, 0, 2)
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, claude.WithBaseURL(v))
	}
	if v := strings.TrimSpace(model); v != "" {
		opts = append(opts, claude.WithModel(v))
	}
	return &ClaudeProvider{
		client: claude.NewClient(strings.TrimSpace(apiKey), opts...),
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

// Complete sends a completion request through the claude client.
func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: claude: nil client")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}

	msgs := make([]claude.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		msgs = append(msgs, claude.Message{Role: role, Content: m.Content})
	}

	resp, err := p.client.Complete(ctx, &claude.Request{
		Messages:    msgs,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("llm: claude: nil response")
	}

	out := &Response{
		StopReason: resp.StopReason,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, b := range resp.Content {
		if b.Type != "text" {
			continue
		}
		out.Content = append(out.Content, ContentBlock{Type: "text", Text: b.Text})
	}
	return out, nil
}
