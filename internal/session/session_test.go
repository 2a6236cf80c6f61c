package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xonecas/lumi/internal/msglog"
	"github.com/xonecas/lumi/internal/provider"
	"github.com/xonecas/lumi/internal/store"
	"github.com/xonecas/lumi/internal/transcript"
)

// scriptedRunner executes every call with a canned result.
type scriptedRunner struct {
	results map[string]ToolResult
	runErr  error
	calls   []provider.ToolCall
}

func (r *scriptedRunner) Tools() []provider.Tool {
	return []provider.Tool{{Name: "lumi_search"}, {Name: "powershell"}}
}

func (r *scriptedRunner) Run(ctx context.Context, call provider.ToolCall) (ToolResult, error) {
	r.calls = append(r.calls, call)
	if r.runErr != nil {
		return ToolResult{}, r.runErr
	}
	return r.results[call.Name], nil
}

func drainEvents(s *Session) []Event {
	var out []Event
	for {
		select {
		case e := <-s.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestTurnWithoutTools(t *testing.T) {
	l := msglog.New(nil)
	p := provider.NewMock("mock", provider.MockResponse{Content: "hello there"})
	s := New(l, nil, "chat-1", p, &scriptedRunner{}, "be brief")

	l.Append(&msglog.Message{Role: msglog.RoleUser, Content: "hi"})
	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error: %v", err)
	}

	if l.Len() != 2 {
		t.Fatalf("log len = %d, want 2", l.Len())
	}
	assistant := l.At(1)
	if assistant.Role != msglog.RoleAssistant || assistant.Content != "hello there" {
		t.Errorf("assistant = %+v", assistant)
	}

	var sawDone bool
	for _, e := range drainEvents(s) {
		if e.Kind == EventAssistantDone && e.Message == assistant {
			sawDone = true
		}
	}
	if !sawDone {
		t.Error("expected EventAssistantDone for the assistant message")
	}
}

func TestTurnSystemPromptReachesProvider(t *testing.T) {
	l := msglog.New(nil)
	p := provider.NewMock("mock", provider.MockResponse{Content: "ok"})
	s := New(l, nil, "chat-1", p, nil, "you are lumi")

	l.Append(&msglog.Message{Role: msglog.RoleUser, Content: "hi"})
	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error: %v", err)
	}

	if len(p.Requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(p.Requests))
	}
	first := p.Requests[0].Messages[0]
	if first.Role != "system" || first.Content != "you are lumi" {
		t.Errorf("first message = %+v, want system prompt", first)
	}
}

func TestTurnWithToolCalls(t *testing.T) {
	l := msglog.New(nil)
	p := provider.NewMock("mock",
		provider.MockResponse{
			Content: "Let me check.",
			ToolCalls: []provider.ToolCall{
				{ID: "c1", Name: "lumi_search", Arguments: `{"query":"cats"}`},
			},
		},
		provider.MockResponse{Content: "Cats are great."},
	)
	runner := &scriptedRunner{results: map[string]ToolResult{
		"lumi_search": {
			Content: "3 results",
			Sources: []msglog.SearchSource{{Title: "Cats", URL: "https://example.com"}},
		},
	}}
	s := New(l, nil, "chat-1", p, runner, "")

	l.Append(&msglog.Message{Role: msglog.RoleUser, Content: "tell me about cats"})
	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error: %v", err)
	}

	// user, assistant preamble, tool, final assistant
	if l.Len() != 4 {
		t.Fatalf("log len = %d, want 4", l.Len())
	}
	tool := l.At(2)
	if tool.Role != msglog.RoleTool || tool.ToolName != "lumi_search" {
		t.Fatalf("tool message = %+v", tool)
	}
	if tool.ToolStatus != msglog.ToolStatusCompleted {
		t.Errorf("tool status = %s, want completed", tool.ToolStatus)
	}
	if l.At(3).Content != "Cats are great." {
		t.Errorf("final assistant = %q", l.At(3).Content)
	}

	if len(runner.calls) != 1 || runner.calls[0].Arguments != `{"query":"cats"}` {
		t.Errorf("runner calls = %+v", runner.calls)
	}

	// The tool result flows back to the model on the second request.
	second := p.Requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "c1" || last.Content != "3 results" {
		t.Errorf("tool result message = %+v", last)
	}

	var sawSources bool
	for _, e := range drainEvents(s) {
		if e.Kind == EventSearchResults && len(e.Sources) == 1 {
			sawSources = true
		}
	}
	if !sawSources {
		t.Error("expected EventSearchResults")
	}
}

func TestTurnSurfacesTerminalAndQuestionEvents(t *testing.T) {
	l := msglog.New(nil)
	p := provider.NewMock("mock",
		provider.MockResponse{ToolCalls: []provider.ToolCall{
			{ID: "c1", Name: "powershell", Arguments: `{"command":"dir"}`},
		}},
		provider.MockResponse{Content: "done"},
	)
	runner := &scriptedRunner{results: map[string]ToolResult{
		"powershell": {
			Content:        "exit 0",
			TerminalOutput: "Volume in drive C",
			Question:       &transcript.Question{ID: "q1", Prompt: "Proceed?"},
		},
	}}
	s := New(l, nil, "chat-1", p, runner, "")

	l.Append(&msglog.Message{Role: msglog.RoleUser, Content: "run dir"})
	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error: %v", err)
	}

	var sawTerminal, sawQuestion bool
	for _, e := range drainEvents(s) {
		switch e.Kind {
		case EventTerminalOutput:
			if e.ToolCallID == "c1" && e.Output == "Volume in drive C" {
				sawTerminal = true
			}
		case EventQuestionAsked:
			if e.Question != nil && e.Question.Prompt == "Proceed?" {
				sawQuestion = true
			}
		}
	}
	if !sawTerminal {
		t.Error("expected EventTerminalOutput")
	}
	if !sawQuestion {
		t.Error("expected EventQuestionAsked")
	}
}

func TestTurnFailedToolMarksStatus(t *testing.T) {
	l := msglog.New(nil)
	p := provider.NewMock("mock",
		provider.MockResponse{ToolCalls: []provider.ToolCall{
			{ID: "c1", Name: "lumi_search", Arguments: `{}`},
		}},
		provider.MockResponse{Content: "sorry"},
	)
	runner := &scriptedRunner{results: map[string]ToolResult{
		"lumi_search": {Content: "backend unreachable", Failed: true},
	}}
	s := New(l, nil, "chat-1", p, runner, "")

	l.Append(&msglog.Message{Role: msglog.RoleUser, Content: "search"})
	if err := s.runTurn(context.Background()); err != nil {
		t.Fatalf("runTurn() error: %v", err)
	}

	tool := l.At(1)
	if tool.ToolStatus != msglog.ToolStatusFailed {
		t.Errorf("tool status = %s, want failed", tool.ToolStatus)
	}
}

func TestTurnRunnerErrorAborts(t *testing.T) {
	l := msglog.New(nil)
	p := provider.NewMock("mock",
		provider.MockResponse{ToolCalls: []provider.ToolCall{
			{ID: "c1", Name: "lumi_search", Arguments: `{}`},
		}},
	)
	runner := &scriptedRunner{runErr: errors.New("boom")}
	s := New(l, nil, "chat-1", p, runner, "")

	l.Append(&msglog.Message{Role: msglog.RoleUser, Content: "search"})
	if err := s.runTurn(context.Background()); err == nil {
		t.Fatal("expected turn error")
	}
	if l.At(1).ToolStatus != msglog.ToolStatusFailed {
		t.Errorf("tool status = %s, want failed", l.At(1).ToolStatus)
	}
}

func TestSendUserMessagePersistsAndRuns(t *testing.T) {
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer st.Close()

	chat, err := st.CreateChat("test", "mock", "mock-model")
	if err != nil {
		t.Fatalf("CreateChat() error: %v", err)
	}

	l := msglog.New(nil)
	p := provider.NewMock("mock", provider.MockResponse{Content: "hi back"})
	s := New(l, st, chat.ID, p, nil, "")

	s.SendUserMessage(context.Background(), "hello", nil)

	deadline := time.After(2 * time.Second)
wait:
	for {
		select {
		case e := <-s.events:
			if e.Kind == EventTyping && !e.Typing {
				break wait
			}
		case <-deadline:
			t.Fatal("timed out waiting for the turn to finish")
		}
	}

	messages, err := st.ListMessages(chat.ID)
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("persisted messages = %d, want 2", len(messages))
	}
	if messages[1].Role != msglog.RoleAssistant || messages[1].Content != "hi back" {
		t.Errorf("persisted assistant = %+v", messages[1])
	}
}
