package provider

import (
	"context"
	"strings"
)

// MockProvider is a scripted provider for tests and offline development.
// Each turn pops the next scripted response; when the script runs out it
// echoes the last user message.
type MockProvider struct {
	name      string
	responses []MockResponse
	next      int

	// Requests records every request received, for assertions.
	Requests []ChatRequest
}

// MockResponse is one scripted turn.
type MockResponse struct {
	Content   string
	Reasoning string
	ToolCalls []ToolCall
}

// NewMock creates a mock provider with a script of responses.
func NewMock(name string, responses ...MockResponse) *MockProvider {
	return &MockProvider{name: name, responses: responses}
}

// Name returns the provider's identifier.
func (p *MockProvider) Name() string {
	return p.name
}

// Chat returns the next scripted response's content.
func (p *MockProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	p.Requests = append(p.Requests, req)
	return p.pop(req).Content, nil
}

// Stream delivers the next scripted response word by word.
func (p *MockProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	p.Requests = append(p.Requests, req)
	resp := p.pop(req)

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		if resp.Reasoning != "" {
			select {
			case ch <- StreamChunk{Reasoning: resp.Reasoning}:
			case <-ctx.Done():
				return
			}
		}
		for _, word := range strings.SplitAfter(resp.Content, " ") {
			if word == "" {
				continue
			}
			select {
			case ch <- StreamChunk{Content: word}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- StreamChunk{Done: true, ToolCalls: resp.ToolCalls}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (p *MockProvider) pop(req ChatRequest) MockResponse {
	if p.next < len(p.responses) {
		resp := p.responses[p.next]
		p.next++
		return resp
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return MockResponse{Content: "echo: " + req.Messages[i].Content}
		}
	}
	return MockResponse{Content: "echo"}
}
