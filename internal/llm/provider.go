// Package llm abstracts the chat-completion providers used to drive the
// exploration backend and the judge grader.
package llm

import "context"

// Provider is a text-completion model endpoint.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request.
type Request struct {
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
}

// ContentBlock is one block of model output.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a completion response.
type Response struct {
	Content    []ContentBlock
	Usage      Usage
	StopReason string
}
