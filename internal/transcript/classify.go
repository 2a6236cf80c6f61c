package transcript

import (
	"os"
	"strings"

	"github.com/xonecas/lumi/internal/msglog"
	"github.com/xonecas/lumi/internal/toolargs"
)

// DisplayPolicy mirrors the user's display settings. Changing any flag
// requires a full rebuild.
type DisplayPolicy struct {
	ShowToolCalls  bool
	ShowReasoning  bool
	ShowTimestamps bool
}

// DefaultDisplayPolicy shows everything except timestamps.
func DefaultDisplayPolicy() DisplayPolicy {
	return DisplayPolicy{ShowToolCalls: true, ShowReasoning: true}
}

// decisionKind is the classifier's verdict for one message.
type decisionKind int

const (
	decideSuppress decisionKind = iota
	decideCollectFileChip
	decideCollectSkill
	decideSetIntentLabel
	decideUpsertTodo
	decideEmitToolChild
	decideEmitTerminalChild
	decideEmitStandalone
)

// decision is the classifier output. fileEdits may accompany an
// EmitToolChild verdict for file-edit tools.
type decision struct {
	kind      decisionKind
	block     *Block
	path      string
	skill     msglog.SkillRef
	label     string
	todo      *TodoList
	fileEdits []FileEdit
}

// fileExists reports whether a chip's path still exists on disk.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fileEditTools is the family of tools whose arguments carry (path, old, new)
// edit triples. multi_replace_string_in_file carries one triple per entry.
var fileEditTools = map[string]bool{
	"edit":                         true,
	"edit_file":                    true,
	"str_replace":                  true,
	"str_replace_editor":           true,
	"replace_string_in_file":       true,
	"insert":                       true,
	"multi_replace_string_in_file": true,
	"create":                       true,
	"write_file":                   true,
	"create_file":                  true,
	"create_and_write_file":        true,
	"write":                        true,
	"save_file":                    true,
}

// classifyTool maps one tool message to a decision. seenFiles is the
// case-insensitive set of file paths already surfaced as chips; building
// reports whether a full or batch rebuild is in progress (historical replay).
func classifyTool(m *msglog.Message, policy DisplayPolicy, seenFiles map[string]bool, building bool) decision {
	args := toolargs.Parse(m.ToolArgs)

	switch m.ToolName {
	case "stop_powershell", "write_powershell", "read_powershell":
		// read_powershell output arrives out-of-band via the terminal-output
		// event, never through the message itself.
		return decision{kind: decideSuppress}

	case "ask_question":
		// Live question cards come from the QuestionAsked event; rendering
		// here too would duplicate them. Replays have no such event.
		if !building {
			return decision{kind: decideSuppress}
		}
		q := &Question{
			ID:            args.Str("id", "question_id", "questionId"),
			Prompt:        args.Str("question", "prompt", "text"),
			AllowFreeText: args.Bool("allow_free_text", "allowFreeText"),
		}
		for _, opt := range args.List("options", "choices") {
			q.Options = append(q.Options, opt.String())
		}
		b := newBlock(KindQuestionCard)
		b.Question = q
		b.Content = q.Prompt
		return decision{kind: decideEmitStandalone, block: b}

	case "announce_file":
		path := args.Str("path", "file_path", "filePath", "filename")
		if path == "" || seenFiles[strings.ToLower(path)] {
			return decision{kind: decideSuppress}
		}
		if !fileExists(path) {
			// Missing or deleted file: silently no chip.
			return decision{kind: decideSuppress}
		}
		return decision{kind: decideCollectFileChip, path: path}

	case "fetch_skill":
		skill := msglog.SkillRef{
			Name:        args.Str("skill", "name", "skill_name"),
			Description: args.Str("description"),
		}
		if skill.Name == "" {
			return decision{kind: decideSuppress}
		}
		return decision{kind: decideCollectSkill, skill: skill}

	case "report_intent":
		label := strings.TrimSpace(args.Str("intent", "text", "message", "description"))
		if label == "" {
			return decision{kind: decideSuppress}
		}
		return decision{kind: decideSetIntentLabel, label: label}

	case "update_todo", "manage_todo_list":
		todo := parseTodoList(args)
		if todo == nil {
			return decision{kind: decideSuppress}
		}
		return decision{kind: decideUpsertTodo, todo: todo}

	case "powershell":
		if !policy.ShowToolCalls {
			return decision{kind: decideSuppress}
		}
		b := newBlock(KindTerminalPreview)
		b.Command = args.Str("command", "script")
		b.Status = m.ToolStatus
		return decision{kind: decideEmitTerminalChild, block: b}
	}

	if fileEditTools[m.ToolName] {
		edits := extractFileEdits(m.ToolName, args)
		if !policy.ShowToolCalls {
			if len(edits) == 0 {
				return decision{kind: decideSuppress}
			}
			// Edits still surface as chips on the next assistant message.
			return decision{kind: decideSuppress, fileEdits: edits}
		}
		return decision{kind: decideEmitToolChild, block: genericToolBlock(m, args), fileEdits: edits}
	}

	if !policy.ShowToolCalls {
		return decision{kind: decideSuppress}
	}
	return decision{kind: decideEmitToolChild, block: genericToolBlock(m, args)}
}

// genericToolBlock builds a tool call block with a friendly name and a
// one-line argument summary. Unknown tools are not an error: the summary
// falls back to a "Field: value" listing.
func genericToolBlock(m *msglog.Message, args toolargs.Args) *Block {
	b := newBlock(KindToolCall)
	b.Name = toolargs.FriendlyToolName(m.ToolName)
	b.InputSummary = truncateSummary(args.Summary())
	b.Status = m.ToolStatus
	return b
}

// editPathKeys, editOldKeys and editNewKeys are the well-known argument
// names tried in order when extracting an edit triple.
var (
	editPathKeys = []string{"path", "file_path", "filePath", "filename", "file"}
	editOldKeys  = []string{"old_str", "old_string", "oldString", "old_text", "oldText"}
	editNewKeys  = []string{"new_str", "new_string", "newString", "new_text", "newText", "content", "code", "text"}
)

// extractFileEdits pulls (path, old, new) triples out of a file-edit tool's
// arguments. Extraction is best effort: a triple without a path is dropped.
func extractFileEdits(toolName string, args toolargs.Args) []FileEdit {
	if toolName == "multi_replace_string_in_file" {
		var edits []FileEdit
		for _, entry := range args.List("replacements", "edits", "changes") {
			sub := toolargs.Parse(entry.Raw)
			edit := FileEdit{
				Path:    sub.Str(editPathKeys...),
				OldText: sub.Str(editOldKeys...),
				NewText: sub.Str(editNewKeys...),
			}
			if edit.Path != "" {
				edits = append(edits, edit)
			}
		}
		return edits
	}

	edit := FileEdit{
		Path:    args.Str(editPathKeys...),
		OldText: args.Str(editOldKeys...),
		NewText: args.Str(editNewKeys...),
	}
	if edit.Path == "" {
		return nil
	}
	return []FileEdit{edit}
}
