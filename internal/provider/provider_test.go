package provider

import (
	"context"
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMock("mock"))

	p, err := r.Get("mock")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.Name() != "mock" {
		t.Errorf("Name() = %s, want mock", p.Name())
	}

	if _, err := r.Get("missing"); err != ErrProviderNotFound {
		t.Errorf("Get(missing) error = %v, want ErrProviderNotFound", err)
	}

	if names := r.List(); len(names) != 1 || names[0] != "mock" {
		t.Errorf("List() = %v", names)
	}
}

func TestMergeSystemMessages(t *testing.T) {
	testCases := []struct {
		name      string
		input     []openai.ChatCompletionMessage
		wantLen   int
		wantFirst string
	}{
		{
			name: "system_moved_to_front",
			input: []openai.ChatCompletionMessage{
				{Role: "user", Content: "hi"},
				{Role: "system", Content: "be brief"},
			},
			wantLen:   2,
			wantFirst: "system",
		},
		{
			name: "multiple_system_merged",
			input: []openai.ChatCompletionMessage{
				{Role: "system", Content: "a"},
				{Role: "user", Content: "hi"},
				{Role: "system", Content: "b"},
			},
			wantLen:   2,
			wantFirst: "system",
		},
		{
			name: "only_system_gets_user_message",
			input: []openai.ChatCompletionMessage{
				{Role: "system", Content: "a"},
			},
			wantLen:   2,
			wantFirst: "system",
		},
		{
			name: "no_system_untouched",
			input: []openai.ChatCompletionMessage{
				{Role: "user", Content: "hi"},
			},
			wantLen:   1,
			wantFirst: "user",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := mergeSystemMessages(tc.input)
			if len(got) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tc.wantLen)
			}
			if got[0].Role != tc.wantFirst {
				t.Errorf("first role = %s, want %s", got[0].Role, tc.wantFirst)
			}
		})
	}
}

func TestMergeSystemMessagesConcatenates(t *testing.T) {
	got := mergeSystemMessages([]openai.ChatCompletionMessage{
		{Role: "system", Content: "a"},
		{Role: "system", Content: "b"},
		{Role: "user", Content: "hi"},
	})
	if got[0].Content != "a\n\nb" {
		t.Errorf("merged content = %q", got[0].Content)
	}
}

func TestToOpenAIMessagesToolFields(t *testing.T) {
	msgs := toOpenAIMessages([]Message{
		{
			Role: "assistant",
			ToolCalls: []ToolCall{
				{ID: "c1", Name: "lumi_search", Arguments: `{"query":"x"}`},
			},
		},
		{Role: "tool", ToolCallID: "c1", Content: "result"},
	})

	if len(msgs[0].ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(msgs[0].ToolCalls))
	}
	tc := msgs[0].ToolCalls[0]
	if tc.ID != "c1" || tc.Function.Name != "lumi_search" {
		t.Errorf("tool call = %+v", tc)
	}
	if msgs[1].ToolCallID != "c1" {
		t.Errorf("tool call id = %s", msgs[1].ToolCallID)
	}
}

func TestToOpenAITools(t *testing.T) {
	tools, err := toOpenAITools([]Tool{
		{Name: "a", Parameters: json.RawMessage(`{"type":"object"}`)},
		{Name: "b"},
	})
	if err != nil {
		t.Fatalf("toOpenAITools() error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("len = %d", len(tools))
	}
	// A tool without a schema gets an empty object schema.
	params, ok := tools[1].Function.Parameters.(map[string]interface{})
	if !ok || params["type"] != "object" {
		t.Errorf("default parameters = %v", tools[1].Function.Parameters)
	}

	if _, err := toOpenAITools([]Tool{{Name: "bad", Parameters: json.RawMessage(`{`)}}); err == nil {
		t.Error("expected error for invalid schema")
	}
}

func TestToolCallAssembler(t *testing.T) {
	idx0, idx1 := 0, 1
	a := newToolCallAssembler()
	a.add([]openai.ToolCall{
		{Index: &idx0, ID: "c1", Function: openai.FunctionCall{Name: "search", Arguments: `{"qu`}},
	})
	a.add([]openai.ToolCall{
		{Index: &idx1, ID: "c2", Function: openai.FunctionCall{Name: "read", Arguments: `{}`}},
		{Index: &idx0, Function: openai.FunctionCall{Arguments: `ery":"x"}`}},
	})

	calls := a.finish()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].ID != "c1" || calls[0].Arguments != `{"query":"x"}` {
		t.Errorf("call 0 = %+v", calls[0])
	}
	if calls[1].Name != "read" {
		t.Errorf("call 1 = %+v", calls[1])
	}
}

func TestMockProviderStream(t *testing.T) {
	p := NewMock("mock", MockResponse{
		Content:   "two words",
		Reasoning: "thinking",
		ToolCalls: []ToolCall{{ID: "c1", Name: "search"}},
	})

	ch, err := p.Stream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var content, reasoning string
	var finalCalls []ToolCall
	for chunk := range ch {
		content += chunk.Content
		reasoning += chunk.Reasoning
		if chunk.Done {
			finalCalls = chunk.ToolCalls
		}
	}

	if content != "two words" {
		t.Errorf("content = %q", content)
	}
	if reasoning != "thinking" {
		t.Errorf("reasoning = %q", reasoning)
	}
	if len(finalCalls) != 1 || finalCalls[0].Name != "search" {
		t.Errorf("tool calls = %+v", finalCalls)
	}
}

func TestMockProviderEchoFallback(t *testing.T) {
	p := NewMock("mock")
	got, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if got != "echo: hello" {
		t.Errorf("Chat() = %q", got)
	}
}
