package transcript

import (
	"github.com/xonecas/lumi/internal/msglog"
)

// windowStart computes the first message index materialized by a full
// rebuild. At most max trailing messages are rendered; the start is advanced
// forward to the next user message so a turn is never split mid-group. If no
// boundary exists within range the unsnapped start is kept.
func windowStart(messages []*msglog.Message, max int) int {
	count := len(messages)
	if max <= 0 || count <= max {
		return 0
	}
	start := count - max
	snapped := start
	for snapped < count && messages[snapped].Role != msglog.RoleUser {
		snapped++
	}
	if snapped >= count {
		return start
	}
	return snapped
}

// olderBatchStart computes the first index of the next older batch loaded
// from the deferred prefix. The batch covers at most batchSize trailing
// deferred messages, extended backward to the nearest user message.
func olderBatchStart(deferred []*msglog.Message, batchSize int) int {
	start := len(deferred) - batchSize
	if start < 0 {
		start = 0
	}
	for start > 0 && deferred[start].Role != msglog.RoleUser {
		start--
	}
	return start
}
