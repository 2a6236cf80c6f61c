package transcript

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/xonecas/lumi/internal/toolargs"
)

// TodoStep is one entry of a parsed todo list.
type TodoStep struct {
	ID     int
	Title  string
	Status string
}

// TodoList is the parsed payload of an update_todo / manage_todo_list call.
type TodoList struct {
	Steps []TodoStep
}

// Todo step status classification: "completed" counts as done,
// "failed"/"blocked"/"cancelled" count as failed, anything else (including
// unknown custom statuses) counts as running.
const (
	todoStatusCompleted = "completed"
	todoStatusFailed    = "failed"
	todoStatusBlocked   = "blocked"
	todoStatusCancelled = "cancelled"
)

// stepDone reports whether a step counts as completed.
func stepDone(status string) bool {
	return strings.EqualFold(status, todoStatusCompleted)
}

// stepFailed reports whether a step counts as failed.
func stepFailed(status string) bool {
	return strings.EqualFold(status, todoStatusFailed) ||
		strings.EqualFold(status, todoStatusBlocked) ||
		strings.EqualFold(status, todoStatusCancelled)
}

// Counts tallies the list into done/failed/running.
func (t *TodoList) Counts() (done, failed, running int) {
	for _, s := range t.Steps {
		switch {
		case stepDone(s.Status):
			done++
		case stepFailed(s.Status):
			failed++
		default:
			running++
		}
	}
	return done, failed, running
}

// parseTodoList extracts a todo list from tool arguments. Two shapes are
// accepted: an object with a "todos" string field holding a markdown
// checklist, or an object/array with a structured list under one of the
// well-known keys. Returns nil when no steps parse.
func parseTodoList(args toolargs.Args) *TodoList {
	if !args.Valid() {
		return nil
	}

	// Shape (a): markdown checklist in a string field.
	if md := args.Str("todos"); md != "" && len(args.List("todos")) == 0 {
		if list := parseMarkdownChecklist(md); list != nil {
			return list
		}
	}

	// Shape (b): structured list under a well-known key, or the root array.
	entries := args.List("todoList", "todo", "items", "tasks", "todos")
	if entries == nil {
		entries = args.List()
	}
	if len(entries) == 0 {
		return nil
	}

	list := &TodoList{}
	for i, entry := range entries {
		step := TodoStep{
			ID:     i,
			Status: "not-started",
		}
		if id := entry.Get("id"); id.Exists() && id.Type == gjson.Number {
			step.ID = int(id.Int())
		}
		for _, key := range []string{"title", "step", "name", "label"} {
			if v := entry.Get(key); v.Exists() {
				step.Title = v.String()
				break
			}
		}
		for _, key := range []string{"status", "state"} {
			if v := entry.Get(key); v.Exists() && v.String() != "" {
				step.Status = v.String()
				break
			}
		}
		if step.Title == "" {
			continue
		}
		list.Steps = append(list.Steps, step)
	}
	if len(list.Steps) == 0 {
		return nil
	}
	return list
}

// parseMarkdownChecklist reads "- [x] Title" / "- [ ] Title" lines. Lines
// without a checkbox are treated as pending steps.
func parseMarkdownChecklist(md string) *TodoList {
	list := &TodoList{}
	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		status := "not-started"
		switch {
		case strings.HasPrefix(line, "- [x] "), strings.HasPrefix(line, "- [X] "):
			status = todoStatusCompleted
			line = line[len("- [x] "):]
		case strings.HasPrefix(line, "- [ ] "):
			line = line[len("- [ ] "):]
		default:
			line = strings.TrimPrefix(line, "- ")
		}
		title := strings.TrimSpace(line)
		if title == "" {
			continue
		}
		list.Steps = append(list.Steps, TodoStep{
			ID:     len(list.Steps),
			Title:  title,
			Status: status,
		})
	}
	if len(list.Steps) == 0 {
		return nil
	}
	return list
}
