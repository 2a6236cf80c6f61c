package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/xonecas/lumi/internal/config"
	"github.com/xonecas/lumi/internal/constants"
)

// OpenAIProvider talks to any endpoint implementing the OpenAI Chat
// Completions API, which covers the hosted API and local servers alike.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAI creates a provider from its config entry. apiKey may be empty for
// local endpoints that don't authenticate.
func NewOpenAI(name string, cfg config.ProviderConfig, apiKey string) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Name returns the provider's identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Chat sends a request and returns the complete response.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.LLMRequestTimeout)
	defer cancel()

	apiReq, err := p.buildRequest(req)
	if err != nil {
		return "", err
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends a request and returns a channel of response chunks. Tool call
// argument deltas are assembled internally and delivered once, on the final
// chunk.
func (p *OpenAIProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	apiReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}
	apiReq.Stream = true

	ctx, cancel := context.WithTimeout(ctx, constants.LLMRequestTimeout)
	stream, err := p.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer cancel()
		defer stream.Close()

		calls := newToolCallAssembler()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				ch <- StreamChunk{Done: true, ToolCalls: calls.finish()}
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("provider", p.name).Msg("stream receive failed")
				ch <- StreamChunk{Err: err}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			calls.add(delta.ToolCalls)
			if delta.Content == "" && delta.ReasoningContent == "" {
				continue
			}
			select {
			case ch <- StreamChunk{Content: delta.Content, Reasoning: delta.ReasoningContent}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *OpenAIProvider) buildRequest(req ChatRequest) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.temperature
	}

	tools, err := toOpenAITools(req.Tools)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("convert tools: %w", err)
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    mergeSystemMessages(toOpenAIMessages(req.Messages)),
		Tools:       tools,
		Temperature: float32(temperature),
	}, nil
}

// toolCallAssembler accumulates streamed tool call fragments by index. The
// API sends the ID and name on the first fragment and argument text split
// across later ones.
type toolCallAssembler struct {
	byIndex map[int]*ToolCall
}

func newToolCallAssembler() *toolCallAssembler {
	return &toolCallAssembler{byIndex: make(map[int]*ToolCall)}
}

func (a *toolCallAssembler) add(deltas []openai.ToolCall) {
	for _, d := range deltas {
		idx := 0
		if d.Index != nil {
			idx = *d.Index
		}
		call, ok := a.byIndex[idx]
		if !ok {
			call = &ToolCall{}
			a.byIndex[idx] = call
		}
		if d.ID != "" {
			call.ID = d.ID
		}
		if d.Function.Name != "" {
			call.Name = d.Function.Name
		}
		call.Arguments += d.Function.Arguments
	}
}

func (a *toolCallAssembler) finish() []ToolCall {
	if len(a.byIndex) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.byIndex))
	for i := range a.byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, *a.byIndex[i])
	}
	return out
}

// toOpenAIMessages converts provider-agnostic messages to OpenAI SDK message format.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}

		// Handle tool call results
		if m.ToolCallID != "" {
			msg.ToolCallID = m.ToolCallID
		}

		// Handle assistant messages with tool calls
		if len(m.ToolCalls) > 0 {
			msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				msg.ToolCalls[j] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
		}

		result[i] = msg
	}
	return result
}

// mergeSystemMessages merges all system messages into a single message at the
// start. The Chat Completions API requires system messages first and at least
// one non-system message after them.
func mergeSystemMessages(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(messages) == 0 {
		return messages
	}

	var systemBuffer strings.Builder
	nonSystemMessages := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == "system" {
			if systemBuffer.Len() > 0 {
				systemBuffer.WriteString("\n\n")
			}
			systemBuffer.WriteString(msg.Content)
		} else {
			nonSystemMessages = append(nonSystemMessages, msg)
		}
	}

	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	if systemBuffer.Len() > 0 {
		result = append(result, openai.ChatCompletionMessage{
			Role:    "system",
			Content: systemBuffer.String(),
		})
	}
	result = append(result, nonSystemMessages...)

	// If we only have system messages, add a minimal user message
	if len(nonSystemMessages) == 0 && len(result) > 0 {
		log.Debug().Msg("only system messages present, adding minimal user message")
		result = append(result, openai.ChatCompletionMessage{
			Role:    "user",
			Content: "Begin.",
		})
	}

	return result
}

// toOpenAITools converts provider-agnostic tools to OpenAI SDK tool format.
// Returns error if any tool has invalid JSON schema.
func toOpenAITools(tools []Tool) ([]openai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var params map[string]interface{}
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &params); err != nil {
				return nil, err
			}
		}
		if params == nil {
			params = map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
		}

		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return result, nil
}
