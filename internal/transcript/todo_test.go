package transcript

import (
	"testing"

	"github.com/xonecas/lumi/internal/toolargs"
)

func TestParseTodoListStructured(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		steps    int
		done     int
		failed   int
		running  int
	}{
		{
			name:    "todoList_key",
			raw:     `{"todoList": [{"title": "a", "status": "completed"}, {"title": "b"}]}`,
			steps:   2,
			done:    1,
			running: 1,
		},
		{
			name:    "items_key_with_state",
			raw:     `{"items": [{"name": "a", "state": "in-progress"}, {"label": "b", "state": "failed"}]}`,
			steps:   2,
			failed:  1,
			running: 1,
		},
		{
			name:    "root_array",
			raw:     `[{"step": "a", "status": "blocked"}, {"step": "b", "status": "cancelled"}, {"step": "c", "status": "completed"}]`,
			steps:   3,
			done:    1,
			failed:  2,
		},
		{
			name:    "unknown_status_counts_running",
			raw:     `{"tasks": [{"title": "a", "status": "wibbling"}]}`,
			steps:   1,
			running: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			list := parseTodoList(toolargs.Parse(tc.raw))
			if list == nil {
				t.Fatal("expected a parsed list")
			}
			if len(list.Steps) != tc.steps {
				t.Fatalf("expected %d steps, got %d", tc.steps, len(list.Steps))
			}
			done, failed, running := list.Counts()
			if done != tc.done || failed != tc.failed || running != tc.running {
				t.Errorf("counts = %d/%d/%d, want %d/%d/%d",
					done, failed, running, tc.done, tc.failed, tc.running)
			}
		})
	}
}

func TestParseTodoListMarkdown(t *testing.T) {
	raw := `{"todos": "- [x] Write tests\n- [ ] Fix bug\nShip it\n\n"}`
	list := parseTodoList(toolargs.Parse(raw))
	if list == nil {
		t.Fatal("expected a parsed list")
	}
	if len(list.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(list.Steps))
	}
	if list.Steps[0].Title != "Write tests" || !stepDone(list.Steps[0].Status) {
		t.Errorf("step 0 = %+v, want completed 'Write tests'", list.Steps[0])
	}
	if list.Steps[1].Title != "Fix bug" || stepDone(list.Steps[1].Status) {
		t.Errorf("step 1 = %+v, want pending 'Fix bug'", list.Steps[1])
	}
	// Non-checkbox lines count as pending.
	if list.Steps[2].Title != "Ship it" || stepDone(list.Steps[2].Status) || stepFailed(list.Steps[2].Status) {
		t.Errorf("step 2 = %+v, want pending 'Ship it'", list.Steps[2])
	}
}

func TestParseTodoListEmpty(t *testing.T) {
	testCases := []string{
		``,
		`{}`,
		`{"todos": ""}`,
		`{"todos": "\n\n"}`,
		`{"todoList": []}`,
		`{"todoList": [{"status": "completed"}]}`, // no title
		`not json`,
	}

	for _, raw := range testCases {
		if list := parseTodoList(toolargs.Parse(raw)); list != nil {
			t.Errorf("parseTodoList(%q) = %+v, want nil", raw, list)
		}
	}
}

func TestStepStatusClassification(t *testing.T) {
	if !stepDone("completed") || !stepDone("Completed") {
		t.Error("completed should count as done")
	}
	for _, s := range []string{"failed", "blocked", "cancelled", "CANCELLED"} {
		if !stepFailed(s) {
			t.Errorf("%q should count as failed", s)
		}
	}
	for _, s := range []string{"not-started", "in-progress", "running", "queued", ""} {
		if stepDone(s) || stepFailed(s) {
			t.Errorf("%q should count as running", s)
		}
	}
}
