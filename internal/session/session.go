// Package session drives one conversation: it streams completions from a
// provider into the message log, executes tool calls, and persists the
// resulting messages.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/lumi/internal/constants"
	"github.com/xonecas/lumi/internal/msglog"
	"github.com/xonecas/lumi/internal/provider"
	"github.com/xonecas/lumi/internal/store"
	"github.com/xonecas/lumi/internal/transcript"
)

// EventKind identifies a session event.
type EventKind int

const (
	// EventTyping toggles the typing indicator.
	EventTyping EventKind = iota
	// EventAssistantDone marks a streamed assistant message final.
	EventAssistantDone
	// EventQuestionAsked requests a question card for a pending ask_question.
	EventQuestionAsked
	// EventTerminalOutput carries out-of-band terminal output for a tool call.
	EventTerminalOutput
	// EventSearchResults carries citations collected from a search tool.
	EventSearchResults
	// EventFileCreated announces a file produced during the turn.
	EventFileCreated
	// EventError reports a failed turn.
	EventError
)

// Event is one notification from the session to the UI.
type Event struct {
	Kind       EventKind
	Message    *msglog.Message
	Question   *transcript.Question
	ToolCallID string
	Output     string
	Replace    bool
	Sources    []msglog.SearchSource
	Path       string
	Typing     bool
	Err        error
}

// ToolResult is the outcome of executing one tool call.
type ToolResult struct {
	// Content goes back to the model as the tool message payload.
	Content string
	Failed  bool

	// Side channels surfaced to the transcript.
	TerminalOutput string
	ReplaceOutput  bool
	Sources        []msglog.SearchSource
	CreatedFile    string
	Question       *transcript.Question
}

// ToolRunner executes tool calls requested by the model.
type ToolRunner interface {
	// Tools lists the tool definitions advertised to the model.
	Tools() []provider.Tool

	// Run executes one call. Errors are reported through ToolResult.Failed;
	// a returned error aborts the whole turn.
	Run(ctx context.Context, call provider.ToolCall) (ToolResult, error)
}

// Session owns the conversation for one chat. One turn runs at a time; a new
// user message while a turn is active queues behind it via turnMu.
type Session struct {
	mu sync.RWMutex

	log      *msglog.Log
	store    *store.Store
	chatID   string
	provider provider.Provider
	runner   ToolRunner
	system   string

	turnMu sync.Mutex
	events chan Event

	cancel context.CancelFunc
}

// New creates a session for chat persisting into s. store may be nil for
// throwaway conversations.
func New(l *msglog.Log, s *store.Store, chatID string, p provider.Provider, runner ToolRunner, systemPrompt string) *Session {
	return &Session{
		log:      l,
		store:    s,
		chatID:   chatID,
		provider: p,
		runner:   runner,
		system:   systemPrompt,
		events:   make(chan Event, constants.MinEventBusBufferSize),
	}
}

// Events returns the session's event stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

// SetProvider swaps the provider for subsequent turns.
func (s *Session) SetProvider(p provider.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}

// Stop cancels the turn in flight, if any.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SendUserMessage appends the user's message to the log and runs one turn
// asynchronously.
func (s *Session) SendUserMessage(ctx context.Context, content string, attachments []string) {
	m := s.log.Append(&msglog.Message{
		Role:        msglog.RoleUser,
		Content:     content,
		Attachments: attachments,
	})
	s.persistAppend(m)

	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		s.turnMu.Lock()
		defer s.turnMu.Unlock()
		if err := s.runTurn(turnCtx); err != nil && turnCtx.Err() == nil {
			log.Error().Err(err).Str("chat", s.chatID).Msg("turn failed")
			s.emit(Event{Kind: EventError, Err: err})
		}
		s.emit(Event{Kind: EventTyping, Typing: false})
	}()
}

// runTurn loops completion rounds until the model stops requesting tools.
func (s *Session) runTurn(ctx context.Context) error {
	s.emit(Event{Kind: EventTyping, Typing: true})

	convo := s.buildProviderMessages()
	for round := 0; round < constants.MaxToolLoopIterations; round++ {
		s.mu.RLock()
		p := s.provider
		s.mu.RUnlock()

		var tools []provider.Tool
		if s.runner != nil {
			tools = s.runner.Tools()
		}

		stream, err := p.Stream(ctx, provider.ChatRequest{Messages: convo, Tools: tools})
		if err != nil {
			return fmt.Errorf("start stream: %w", err)
		}

		assistant, _, calls, err := s.consumeStream(ctx, stream)
		if err != nil {
			return err
		}

		if len(calls) == 0 {
			if assistant != nil {
				s.persistAppend(assistant)
				s.emit(Event{Kind: EventAssistantDone, Message: assistant})
			}
			return nil
		}

		// The model wants tools: record the request in the provider context,
		// then execute each call and feed the results back.
		convo = append(convo, provider.Message{
			Role:      "assistant",
			Content:   contentOf(assistant),
			ToolCalls: calls,
		})
		if assistant != nil {
			s.persistAppend(assistant)
			s.emit(Event{Kind: EventAssistantDone, Message: assistant})
		}

		for _, call := range calls {
			result, err := s.executeToolCall(ctx, call)
			if err != nil {
				return err
			}
			convo = append(convo, provider.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result.Content,
			})
		}
	}

	log.Warn().Str("chat", s.chatID).Msg("tool loop hit iteration cap")
	return nil
}

// consumeStream drains one completion stream, growing log messages in place
// as deltas arrive. Either returned message may be nil when the model sent no
// text of that kind.
func (s *Session) consumeStream(ctx context.Context, stream <-chan provider.StreamChunk) (assistant, reasoning *msglog.Message, calls []provider.ToolCall, err error) {
	for chunk := range stream {
		if chunk.Err != nil {
			return nil, nil, nil, fmt.Errorf("stream: %w", chunk.Err)
		}
		if ctx.Err() != nil {
			return nil, nil, nil, ctx.Err()
		}

		if chunk.Reasoning != "" {
			if reasoning == nil {
				reasoning = s.log.Append(&msglog.Message{Role: msglog.RoleReasoning})
			}
			s.log.AppendDelta(reasoning, chunk.Reasoning)
		}
		if chunk.Content != "" {
			if assistant == nil {
				assistant = s.log.Append(&msglog.Message{Role: msglog.RoleAssistant})
			}
			s.log.AppendDelta(assistant, chunk.Content)
		}
		if chunk.Done {
			calls = chunk.ToolCalls
		}
	}
	if reasoning != nil {
		s.persistAppend(reasoning)
	}
	return assistant, reasoning, calls, nil
}

// executeToolCall appends the tool message, runs the tool, resolves the
// status, and surfaces side-channel events.
func (s *Session) executeToolCall(ctx context.Context, call provider.ToolCall) (ToolResult, error) {
	m := s.log.Append(&msglog.Message{
		Role:       msglog.RoleTool,
		ToolName:   call.Name,
		ToolCallID: call.ID,
		ToolArgs:   call.Arguments,
		ToolStatus: msglog.ToolStatusInProgress,
	})

	if s.runner == nil {
		s.log.SetToolStatus(m, msglog.ToolStatusFailed)
		s.persistAppend(m)
		return ToolResult{Content: "no tool runner configured", Failed: true}, nil
	}

	result, err := s.runner.Run(ctx, call)
	if err != nil {
		s.log.SetToolStatus(m, msglog.ToolStatusFailed)
		s.persistAppend(m)
		return ToolResult{}, fmt.Errorf("run %s: %w", call.Name, err)
	}

	if result.TerminalOutput != "" {
		s.emit(Event{
			Kind:       EventTerminalOutput,
			ToolCallID: call.ID,
			Output:     result.TerminalOutput,
			Replace:    result.ReplaceOutput,
		})
	}
	if len(result.Sources) > 0 {
		s.emit(Event{Kind: EventSearchResults, Sources: result.Sources})
	}
	if result.CreatedFile != "" {
		s.emit(Event{Kind: EventFileCreated, Path: result.CreatedFile})
	}
	if result.Question != nil {
		s.emit(Event{Kind: EventQuestionAsked, Question: result.Question, ToolCallID: call.ID})
	}

	status := msglog.ToolStatusCompleted
	if result.Failed {
		status = msglog.ToolStatusFailed
	}
	s.log.SetToolStatus(m, status)
	s.persistAppend(m)
	return result, nil
}

// buildProviderMessages flattens the log into provider context. Reasoning
// messages are omitted: they are display-only history. Tool activity is
// replayed as plain assistant/tool pairs so resumed chats keep their shape.
func (s *Session) buildProviderMessages() []provider.Message {
	var out []provider.Message
	if s.system != "" {
		out = append(out, provider.Message{Role: "system", Content: s.system})
	}
	for _, m := range s.log.Messages() {
		switch m.Role {
		case msglog.RoleUser:
			out = append(out, provider.Message{Role: "user", Content: m.Content})
		case msglog.RoleAssistant:
			out = append(out, provider.Message{Role: "assistant", Content: m.Content})
		case msglog.RoleTool:
			out = append(out, provider.Message{
				Role:      "assistant",
				ToolCalls: []provider.ToolCall{{ID: m.ToolCallID, Name: m.ToolName, Arguments: m.ToolArgs}},
			})
			out = append(out, provider.Message{
				Role:       "tool",
				ToolCallID: m.ToolCallID,
				Content:    m.Content,
			})
		case msglog.RoleSystem:
			out = append(out, provider.Message{Role: "system", Content: m.Content})
		}
	}
	return out
}

func (s *Session) persistAppend(m *msglog.Message) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendMessage(s.chatID, m); err != nil {
		// Duplicate IDs mean the message was persisted earlier in the turn;
		// rewrite it with the final content and status instead.
		if uerr := s.store.UpdateMessage(m); uerr != nil {
			log.Warn().Err(err).Str("message", m.ID).Msg("persist failed")
		}
		return
	}
	if err := s.store.TouchChat(s.chatID); err != nil {
		log.Warn().Err(err).Str("chat", s.chatID).Msg("touch chat failed")
	}
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		log.Warn().Int("kind", int(e.Kind)).Msg("session event dropped, buffer full")
	}
}

func contentOf(m *msglog.Message) string {
	if m == nil {
		return ""
	}
	return m.Content
}
