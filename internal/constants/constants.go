// Package constants centralizes tuning knobs shared across packages.
package constants

import "time"

// InitialRenderMax is the number of trailing messages materialized on a full
// rebuild. Anything older is deferred and loaded in batches on scroll.
const InitialRenderMax = 20

// OlderBatchSize is the number of deferred messages loaded per batch when the
// user scrolls near the top of the transcript.
const OlderBatchSize = 15

// ScrollTopThresholdLines triggers an older-batch load when the scroll offset
// drops below this many lines from the top.
const ScrollTopThresholdLines = 100

// LoadingIndicatorThreshold is the rebuild size above which a loading
// indicator is shown and one scheduling tick is yielded before building.
const LoadingIndicatorThreshold = 6

// MinEventBusBufferSize is the minimum buffer per subscriber channel.
const MinEventBusBufferSize = 1000

// TerminalPreviewMaxChars limits terminal output kept on a preview block.
const TerminalPreviewMaxChars = 64 * 1024

// ToolSummaryMaxWidth limits the one-line argument summary on a tool call
// block, measured in display columns.
const ToolSummaryMaxWidth = 80

// ToolSummaryEllipsis is appended when truncating long tool summaries.
const ToolSummaryEllipsis = "..."

// LLMRequestTimeout caps a single streaming completion.
const LLMRequestTimeout = 5 * time.Minute

// MaxToolLoopIterations caps how many completion/tool rounds one user turn
// may run before the session gives up and finalizes.
const MaxToolLoopIterations = 8

// TypingIndicatorDelay is how long the assistant may be silent before the
// typing indicator appears.
const TypingIndicatorDelay = 300 * time.Millisecond
