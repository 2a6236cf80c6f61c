package transcript

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/lumi/internal/constants"
	"github.com/xonecas/lumi/internal/msglog"
)

// Scheduler abstracts the engine's suspension points: the loading-indicator
// yield before a large rebuild and the layout yield after prepending an older
// batch. Tests run synchronously; the TUI yields for one frame.
type Scheduler interface {
	Yield(ctx context.Context) error
}

// SyncScheduler never suspends.
type SyncScheduler struct{}

// Yield returns immediately, propagating only cancellation.
func (SyncScheduler) Yield(ctx context.Context) error {
	return ctx.Err()
}

// TickScheduler suspends for one frame interval.
type TickScheduler struct {
	Interval time.Duration
}

// Yield waits one interval or until the context is cancelled.
func (s TickScheduler) Yield(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	select {
	case <-time.After(interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Engine turns the message log into the block tree on the canvas.
//
// Concurrency model: the engine is logically single-owner. A full rebuild or
// an older-batch load holds the mutex across its suspension points, so
// live-path entry points use TryLock. Events arriving during a full rebuild
// are dropped — the rebuild re-reads the whole log, so dropping is lossless.
// Events arriving during an older-batch load are buffered and replayed after
// the load releases the engine: the load only touches the deferred prefix and
// never re-reads the live tail, so a drop there would lose the event for
// good. The generation counter makes a superseded rebuild abort silently at
// its next checkpoint.
type Engine struct {
	mu       sync.Mutex
	log      *msglog.Log
	canvas   Canvas
	scroller Scroller
	sched    Scheduler
	policy   DisplayPolicy

	gen        atomic.Uint64
	buildDepth int
	building   int

	agg       *AggregationContext
	seenFiles map[string]bool
	liveText  map[string]*Block
	typing    *Block

	deferred     []*msglog.Message
	loadingOlder bool

	// Live events buffered while an older-batch load holds mu.
	pendMu    sync.Mutex
	pendQueue []pendingEvent
	queueLive bool
}

// pendingEvent is one live log event held back during an older-batch load.
type pendingEvent struct {
	kind msglog.EventType
	msg  *msglog.Message
}

// NewEngine creates an engine rendering log onto canvas. scroller may be nil
// when no scroll container exists (headless tests of the non-virtualized
// paths).
func NewEngine(l *msglog.Log, canvas Canvas, scroller Scroller, sched Scheduler, policy DisplayPolicy) *Engine {
	if sched == nil {
		sched = SyncScheduler{}
	}
	return &Engine{
		log:       l,
		canvas:    canvas,
		scroller:  scroller,
		sched:     sched,
		policy:    policy,
		agg:       newAggregationContext(),
		seenFiles: make(map[string]bool),
		liveText:  make(map[string]*Block),
	}
}

// SetPolicy replaces the display policy. The caller is expected to follow up
// with a full rebuild; the policy only affects how messages classify.
func (e *Engine) SetPolicy(p DisplayPolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

// Policy returns the current display policy.
func (e *Engine) Policy() DisplayPolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// DeferredCount reports how many old messages are not yet materialized.
func (e *Engine) DeferredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.deferred)
}

// superseded reports whether this session lost the right to touch the canvas.
func (e *Engine) superseded(ctx context.Context, gen uint64) bool {
	return ctx.Err() != nil || e.gen.Load() != gen
}

// Rebuild replays the whole log into a fresh block tree. Any in-flight
// session is superseded and aborts silently at its next checkpoint. Used on
// chat switch, log reset, and display-setting changes.
func (e *Engine) Rebuild(ctx context.Context) {
	gen := e.gen.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rebuildLocked(ctx, gen)
}

func (e *Engine) rebuildLocked(ctx context.Context, gen uint64) {
	if e.superseded(ctx, gen) {
		return
	}
	e.buildDepth++
	defer func() { e.buildDepth-- }()

	msgs := e.log.Messages()
	start := windowStart(msgs, constants.InitialRenderMax)
	var deferred []*msglog.Message
	if start > 0 {
		deferred = append([]*msglog.Message(nil), msgs[:start]...)
	}
	render := msgs[start:]

	e.canvas.Clear()
	e.typing = nil

	// Large histories drop a frame if built synchronously: show an indicator
	// and give the renderer one tick first.
	if len(render) > constants.LoadingIndicatorThreshold {
		loading := newBlock(KindLoadingIndicator)
		e.canvas.Append(loading)
		if err := e.sched.Yield(ctx); err != nil {
			return
		}
		if e.superseded(ctx, gen) {
			return
		}
		e.canvas.Remove(loading)
		loading.Detach()
	}

	e.agg = newAggregationContext()
	e.seenFiles = make(map[string]bool)
	e.liveText = make(map[string]*Block)

	staging := NewBlockList()
	e.building++
	for _, m := range render {
		if e.superseded(ctx, gen) {
			e.building--
			return
		}
		e.applyMessage(staging, m, false)
	}
	e.agg.closeGroup(staging)
	collapseAll(staging, true)
	e.building--

	if e.superseded(ctx, gen) {
		return
	}
	for _, b := range staging.Blocks() {
		e.canvas.Append(b)
	}
	e.deferred = deferred
	e.loadingOlder = false
	log.Debug().
		Int("rendered", len(render)).
		Int("deferred", len(deferred)).
		Msg("transcript rebuilt")
}

// HandleAdded renders one freshly appended message. Appends are ignored
// entirely while a full rebuild is in flight: the rebuild already reads the
// whole log, and rendering the message twice is worse than rendering it
// once late. During an older-batch load the append is buffered instead and
// replayed once the load completes.
func (e *Engine) HandleAdded(m *msglog.Message) {
	if !e.mu.TryLock() {
		e.bufferLive(msglog.EventAdded, m)
		return
	}
	defer e.mu.Unlock()
	if e.buildDepth > 0 {
		return
	}
	e.removeTypingLocked()
	e.applyMessage(e.canvas, m, true)
}

// HandleContentChanged updates the text block bound to a streaming message.
func (e *Engine) HandleContentChanged(m *msglog.Message) {
	if !e.mu.TryLock() {
		e.bufferLive(msglog.EventContentChanged, m)
		return
	}
	defer e.mu.Unlock()
	if b := e.liveText[m.ID]; b != nil {
		b.Content = m.Content
	}
}

// HandleStatusChanged propagates a tool status transition onto the child
// block tracked for its tool call, records its duration, and refreshes the
// group chrome. A status transition fires exactly once per tool message, so
// unlike appends it can never be dropped during an older-batch load; it is
// buffered and replayed instead.
func (e *Engine) HandleStatusChanged(m *msglog.Message) {
	if !e.mu.TryLock() {
		e.bufferLive(msglog.EventStatusChanged, m)
		return
	}
	defer e.mu.Unlock()

	b := e.agg.calls[m.ToolCallID]
	if b == nil {
		b = e.agg.terminals[m.ToolCallID]
	}
	if b == nil {
		return
	}
	b.Status = m.ToolStatus
	if started, ok := e.agg.startTimes[m.ToolCallID]; ok && b.Finished() {
		b.DurationMs = time.Since(started).Milliseconds()
	}
	e.agg.updateGroup()
}

// AssistantDone marks a streaming assistant message finished and collapses
// the run of groups preceding it into a turn summary.
func (e *Engine) AssistantDone(m *msglog.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.liveText[m.ID]
	if b == nil {
		return
	}
	b.Content = m.Content
	b.IsStreaming = false
	collapseTurn(e.canvas, b, false)
}

// MaybeLoadOlder materializes the next batch of deferred history when the
// scroll offset is near the top. At most one load runs at a time. Returns
// whether a load happened.
func (e *Engine) MaybeLoadOlder(ctx context.Context) bool {
	e.mu.Lock()
	if e.loadingOlder || len(e.deferred) == 0 || e.scroller == nil ||
		e.scroller.Offset() >= constants.ScrollTopThresholdLines {
		e.mu.Unlock()
		return false
	}
	loaded := e.loadOlderLocked(ctx)
	e.mu.Unlock()
	e.replayBuffered()
	return loaded
}

// LoadOlder loads the next deferred batch unconditionally (used by tests and
// the "load more" key binding).
func (e *Engine) LoadOlder(ctx context.Context) bool {
	e.mu.Lock()
	if e.loadingOlder || len(e.deferred) == 0 || e.scroller == nil {
		e.mu.Unlock()
		return false
	}
	loaded := e.loadOlderLocked(ctx)
	e.mu.Unlock()
	e.replayBuffered()
	return loaded
}

// bufferLive queues a live event that arrived while an older-batch load holds
// the engine. Outside of a load the event is dropped: the only other long
// holder is a full rebuild, which re-reads the whole log anyway.
func (e *Engine) bufferLive(t msglog.EventType, m *msglog.Message) {
	e.pendMu.Lock()
	defer e.pendMu.Unlock()
	if !e.queueLive {
		return
	}
	e.pendQueue = append(e.pendQueue, pendingEvent{kind: t, msg: m})
}

// replayBuffered re-applies, in arrival order, the live events held back
// while an older-batch load had the engine. Must run without mu held.
func (e *Engine) replayBuffered() {
	e.pendMu.Lock()
	queued := e.pendQueue
	e.pendQueue = nil
	e.pendMu.Unlock()

	for _, ev := range queued {
		switch ev.kind {
		case msglog.EventAdded:
			e.HandleAdded(ev.msg)
		case msglog.EventContentChanged:
			e.HandleContentChanged(ev.msg)
		case msglog.EventStatusChanged:
			e.HandleStatusChanged(ev.msg)
		}
	}
}

func (e *Engine) loadOlderLocked(ctx context.Context) bool {
	gen := e.gen.Load()
	e.loadingOlder = true
	defer func() { e.loadingOlder = false }()
	e.buildDepth++
	defer func() { e.buildDepth-- }()

	e.pendMu.Lock()
	e.queueLive = true
	e.pendMu.Unlock()
	defer func() {
		e.pendMu.Lock()
		e.queueLive = false
		e.pendMu.Unlock()
	}()

	start := olderBatchStart(e.deferred, constants.OlderBatchSize)
	batch := e.deferred[start:]

	extentBefore := e.scroller.ContentExtent()
	offsetBefore := e.scroller.Offset()

	// The batch aggregates in a private context: the live open group and the
	// historical batch must never observe each other's scratch state. The
	// swap is a plain assignment with no suspension point in between.
	saved := e.agg
	e.agg = newAggregationContext()
	e.building++
	staging := NewBlockList()
	for _, m := range batch {
		e.applyMessage(staging, m, false)
	}
	e.agg.closeGroup(staging)
	collapseAll(staging, true)
	e.building--
	e.agg = saved

	if e.superseded(ctx, gen) {
		return false
	}

	var marker *Block
	if blocks := e.canvas.Blocks(); len(blocks) > 0 {
		marker = blocks[0]
	}
	for _, b := range staging.Blocks() {
		e.canvas.InsertBefore(marker, b)
	}

	if start == 0 {
		e.deferred = nil
	} else {
		e.deferred = e.deferred[:start]
	}

	// One frame so the container measures the new content, then shift the
	// offset by the growth so the viewport stays put.
	if err := e.sched.Yield(ctx); err != nil {
		return true
	}
	delta := e.scroller.ContentExtent() - extentBefore
	e.scroller.SetOffset(offsetBefore + delta)
	log.Debug().
		Int("batch", len(batch)).
		Int("remaining", len(e.deferred)).
		Int("extent_delta", delta).
		Msg("older history loaded")
	return true
}

// ApplyTerminalOutput merges a terminal-output event into the preview block
// open for its tool call. Output for a closed group is dropped.
func (e *Engine) ApplyTerminalOutput(toolCallID, output string, replace bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.agg.terminals[toolCallID]
	if b == nil {
		return
	}
	merged := mergeTerminalOutput(b.Output, output, replace)
	if len(merged) > constants.TerminalPreviewMaxChars {
		cut := len(merged) - constants.TerminalPreviewMaxChars
		// Never split a rune: advance the cut to the next rune start.
		for cut < len(merged) && !utf8.RuneStart(merged[cut]) {
			cut++
		}
		merged = merged[cut:]
	}
	b.Output = merged
}

// CollectSearchResults buffers search sources for the next assistant block.
func (e *Engine) CollectSearchResults(sources []msglog.SearchSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agg.pendingSources = append(e.agg.pendingSources, sources...)
}

// NoteFileCreated buffers a file chip for the next assistant block, deduped
// case-insensitively and checked for existence like announce_file.
func (e *Engine) NoteFileCreated(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := strings.ToLower(path)
	if path == "" || e.seenFiles[key] {
		return
	}
	if !fileExists(path) {
		return
	}
	e.seenFiles[key] = true
	e.agg.pendingChips = append(e.agg.pendingChips, path)
}

// ShowQuestion renders a live question card. This is the only way a card
// appears during live execution; the classifier suppresses ask_question
// outside of rebuilds.
func (e *Engine) ShowQuestion(q Question) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.agg.closeGroup(e.canvas)
	b := newBlock(KindQuestionCard)
	b.Question = &q
	b.Content = q.Prompt
	e.canvas.Append(b)
}

// SetTyping shows or hides the typing indicator at the canvas tail.
func (e *Engine) SetTyping(show bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if show == (e.typing != nil) {
		return
	}
	if show {
		e.typing = newBlock(KindTypingIndicator)
		e.canvas.Append(e.typing)
		return
	}
	e.removeTypingLocked()
}

func (e *Engine) removeTypingLocked() {
	if e.typing == nil {
		return
	}
	e.canvas.Remove(e.typing)
	e.typing.Detach()
	e.typing = nil
}

// applyMessage classifies one message and applies its decision to target.
// live marks the single-message append path, where new assistant blocks are
// still streaming.
func (e *Engine) applyMessage(target Canvas, m *msglog.Message, live bool) {
	switch m.Role {
	case msglog.RoleSystem:
		return

	case msglog.RoleUser:
		e.agg.closeGroup(target)
		b := e.newTextBlock(m)
		b.FileChips = append([]string(nil), m.Attachments...)
		b.Skills = append([]msglog.SkillRef(nil), m.ActiveSkills...)
		target.Append(b)

	case msglog.RoleAssistant:
		e.agg.closeGroup(target)
		b := e.newTextBlock(m)
		chips, skills, sources, edits := e.agg.takeAttachments()
		b.FileChips = chips
		b.Skills = append(skills, m.ActiveSkills...)
		b.Sources = append(sources, m.Sources...)
		b.FileEdits = edits
		b.IsStreaming = live
		target.Append(b)

	case msglog.RoleReasoning:
		// Reasoning and tool groups cannot be siblings inside one group.
		e.agg.closeGroup(target)
		if !e.policy.ShowReasoning {
			return
		}
		target.Append(e.newTextBlock(m))

	case msglog.RoleTool:
		e.applyToolMessage(target, m)
	}
}

func (e *Engine) applyToolMessage(target Canvas, m *msglog.Message) {
	d := classifyTool(m, e.policy, e.seenFiles, e.building > 0)
	if len(d.fileEdits) > 0 {
		e.agg.pendingEdits = append(e.agg.pendingEdits, d.fileEdits...)
	}

	switch d.kind {
	case decideSuppress:
		return

	case decideCollectFileChip:
		e.seenFiles[strings.ToLower(d.path)] = true
		e.agg.pendingChips = append(e.agg.pendingChips, d.path)

	case decideCollectSkill:
		e.agg.pendingSkills = append(e.agg.pendingSkills, d.skill)

	case decideSetIntentLabel:
		e.agg.intentText = d.label
		// The label needs somewhere to attach, so the intent opens (or keeps
		// open) a group, but only when tool calls are shown at all.
		if e.policy.ShowToolCalls {
			e.agg.ensureGroup(target, m.ToolStatus, e.building > 0)
			e.agg.updateGroup()
		}

	case decideUpsertTodo:
		if !e.policy.ShowToolCalls {
			return
		}
		e.agg.ensureGroup(target, m.ToolStatus, e.building > 0)
		e.agg.upsertTodo(d.todo)
		e.agg.updateGroup()

	case decideEmitTerminalChild:
		// One preview per tool call: re-delivery mutates the existing node.
		if m.ToolCallID != "" {
			if existing := e.agg.terminals[m.ToolCallID]; existing != nil {
				existing.Status = m.ToolStatus
				e.agg.updateGroup()
				return
			}
		}
		e.agg.ensureGroup(target, m.ToolStatus, e.building > 0)
		e.agg.addChild(m, d.block)
		e.agg.updateGroup()

	case decideEmitToolChild:
		e.agg.ensureGroup(target, m.ToolStatus, e.building > 0)
		e.agg.addChild(m, d.block)
		e.agg.updateGroup()

	case decideEmitStandalone:
		e.agg.closeGroup(target)
		target.Append(d.block)
	}
}

// newTextBlock builds a standalone text block bound to its message: content
// changes stream into the block until it detaches.
func (e *Engine) newTextBlock(m *msglog.Message) *Block {
	b := newBlock(KindText)
	b.Role = m.Role
	b.Content = m.Content
	b.Author = m.Author
	b.Timestamp = m.Timestamp

	id := m.ID
	e.liveText[id] = b
	b.OnDetach(func() {
		if e.liveText[id] == b {
			delete(e.liveText, id)
		}
	})
	return b
}
